package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/controllers"
	"github.com/amaumene/sweeparr/internal/models"
)

// CandidatesHandler handles candidate listing and manual overrides
type CandidatesHandler struct {
	db       *models.Database
	library  controllers.LibraryConnector
	actCtrl  *controllers.ActionController
	scanCtrl *controllers.ScanController
	keepName string
	logger   *logrus.Logger
}

// NewCandidatesHandler creates a new candidates handler. keepName is the
// protected collection the keep override adds items to.
func NewCandidatesHandler(
	db *models.Database,
	library controllers.LibraryConnector,
	actCtrl *controllers.ActionController,
	scanCtrl *controllers.ScanController,
	keepName string,
	logger *logrus.Logger,
) *CandidatesHandler {
	return &CandidatesHandler{
		db:       db,
		library:  library,
		actCtrl:  actCtrl,
		scanCtrl: scanCtrl,
		keepName: keepName,
		logger:   logger,
	}
}

// ServeHTTP routes /api/candidates, /api/candidates/{id}/cancel and
// /api/candidates/{id}/keep
func (h *CandidatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/candidates"), "/")

	if rest == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "Invalid candidate id", http.StatusBadRequest)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.get(w, id)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch parts[1] {
	case "cancel":
		h.cancel(w, id)
	case "keep":
		h.keep(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *CandidatesHandler) list(w http.ResponseWriter, r *http.Request) {
	state := models.CandidateState(r.URL.Query().Get("state"))
	candidates, err := h.db.GetCandidates(state)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get candidates")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

func (h *CandidatesHandler) get(w http.ResponseWriter, id uint64) {
	candidate, err := h.db.GetCandidate(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Candidate not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to get candidate")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}

func (h *CandidatesHandler) cancel(w http.ResponseWriter, id uint64) {
	if err := h.actCtrl.CancelCandidate(id); err != nil {
		h.overrideError(w, err, "Failed to cancel candidate")
		return
	}
	h.logger.WithField("candidate_id", id).Info("Candidate cancelled manually")
	w.WriteHeader(http.StatusNoContent)
}

// keep cancels the candidate and adds the item to the protected collection
// so future scans discard the match before planning.
func (h *CandidatesHandler) keep(w http.ResponseWriter, r *http.Request, id uint64) {
	candidate, err := h.db.GetCandidate(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Candidate not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to get candidate")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Season collections live on the show in Plex, so protect the whole
	// show when the candidate is a season.
	itemKey := candidate.ItemKey
	if candidate.ItemType == models.ItemTypeSeason && candidate.ShowKey != "" {
		itemKey = candidate.ShowKey
	}
	if err := h.library.AddToCollection(r.Context(), itemKey, h.keepName); err != nil {
		h.logger.WithError(err).Error("Failed to add item to protected collection")
		http.Error(w, "Failed to update media server", http.StatusBadGateway)
		return
	}

	if err := h.actCtrl.CancelCandidate(id); err != nil {
		h.overrideError(w, err, "Failed to cancel candidate")
		return
	}

	// Re-scan the rule in the background so sibling candidates of the same
	// show pick up the new protection promptly.
	ruleID := candidate.RuleID
	go func() {
		if _, err := h.scanCtrl.ScanRule(context.Background(), ruleID); err != nil {
			h.logger.WithError(err).WithField("rule_id", ruleID).Error("Post-keep rescan failed")
		}
	}()

	h.logger.WithFields(logrus.Fields{
		"candidate_id": id,
		"item":         candidate.ItemTitle,
		"collection":   h.keepName,
	}).Info("Candidate kept")
	w.WriteHeader(http.StatusNoContent)
}

func (h *CandidatesHandler) overrideError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Candidate not found", http.StatusNotFound)
	case errors.Is(err, controllers.ErrCandidateTerminal):
		http.Error(w, "Candidate already in a terminal state", http.StatusConflict)
	default:
		h.logger.WithError(err).Error(logMsg)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
