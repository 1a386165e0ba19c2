package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/controllers"
	"github.com/amaumene/sweeparr/internal/models"
)

// ScanHandler triggers manual scans
type ScanHandler struct {
	scanCtrl *controllers.ScanController
	logger   *logrus.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scanCtrl *controllers.ScanController, logger *logrus.Logger) *ScanHandler {
	return &ScanHandler{scanCtrl: scanCtrl, logger: logger}
}

// ServeHTTP handles POST /api/scan (all enabled rules) and
// POST /api/scan/{id} (one rule). Scans run synchronously; a concurrent
// scheduled scan of the same rule is waited on, never raced.
func (h *ScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/scan"), "/")
	if rest == "" {
		summaries, err := h.scanCtrl.ScanAll(r.Context())
		if err != nil {
			h.logger.WithError(err).Error("Manual scan failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
		return
	}

	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		http.Error(w, "Invalid rule id", http.StatusBadRequest)
		return
	}

	summary, err := h.scanCtrl.ScanRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).WithField("rule_id", id).Error("Manual rule scan failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
