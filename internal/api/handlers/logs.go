package handlers

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/models"
)

const defaultLogLimit = 100

// LogsHandler serves the action log
type LogsHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewLogsHandler creates a new logs handler
func NewLogsHandler(db *models.Database, logger *logrus.Logger) *LogsHandler {
	return &LogsHandler{db: db, logger: logger}
}

// ServeHTTP handles GET /api/logs, most recent first
func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	logs, err := h.db.GetLogs(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get action logs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
