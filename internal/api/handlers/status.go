package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/models"
)

// StatusHandler handles status requests
type StatusHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalRules      int `json:"total_rules"`
	EnabledRules    int `json:"enabled_rules"`
	TotalCandidates int `json:"total_candidates"`
	Pending         int `json:"pending"`
	Due             int `json:"due"`
	Executed        int `json:"executed"`
	Cancelled       int `json:"cancelled"`
	WithFailures    int `json:"with_failures"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rules, err := h.db.GetRules()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get rules")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	candidates, err := h.db.GetCandidates("")
	if err != nil {
		h.logger.WithError(err).Error("Failed to get candidates")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := StatusResponse{
		TotalRules:      len(rules),
		TotalCandidates: len(candidates),
	}
	for _, rule := range rules {
		if rule.Enabled {
			response.EnabledRules++
		}
	}
	for _, candidate := range candidates {
		switch candidate.State {
		case models.StatePending:
			response.Pending++
		case models.StateDue:
			response.Due++
		case models.StateExecuted:
			response.Executed++
		case models.StateCancelled:
			response.Cancelled++
		}
		if candidate.HasFailure() {
			response.WithFailures++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
