package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/models"
)

// RulesHandler handles rule CRUD requests
type RulesHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(db *models.Database, logger *logrus.Logger) *RulesHandler {
	return &RulesHandler{db: db, logger: logger}
}

// ServeHTTP routes /api/rules and /api/rules/{id}
func (h *RulesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/rules"), "/")

	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		http.Error(w, "Invalid rule id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RulesHandler) list(w http.ResponseWriter) {
	rules, err := h.db.GetRules()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get rules")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *RulesHandler) get(w http.ResponseWriter, id uint64) {
	rule, err := h.db.GetRule(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to get rule")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *RulesHandler) create(w http.ResponseWriter, r *http.Request) {
	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.db.CreateRule(&rule); err != nil {
		h.writeError(w, err, "Failed to create rule")
		return
	}

	h.logger.WithField("rule", rule.Name).Info("Rule created")
	writeJSON(w, http.StatusCreated, rule)
}

func (h *RulesHandler) update(w http.ResponseWriter, r *http.Request, id uint64) {
	existing, err := h.db.GetRule(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to get rule")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt

	if err := h.db.UpdateRule(&rule); err != nil {
		h.writeError(w, err, "Failed to update rule")
		return
	}

	h.logger.WithField("rule", rule.Name).Info("Rule updated")
	writeJSON(w, http.StatusOK, rule)
}

func (h *RulesHandler) delete(w http.ResponseWriter, id uint64) {
	if err := h.db.DeleteRule(id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to delete rule")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.WithField("rule_id", id).Info("Rule deleted, active candidates cancelled")
	w.WriteHeader(http.StatusNoContent)
}

func (h *RulesHandler) writeError(w http.ResponseWriter, err error, logMsg string) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"field": verr.Field,
			"error": verr.Reason,
		})
		return
	}
	h.logger.WithError(err).Error(logMsg)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
