package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/models"
)

// LibraryLister lists the media server's libraries
type LibraryLister interface {
	ListLibraries(ctx context.Context) ([]models.Library, error)
}

// LibrariesHandler lists libraries available for rule targeting
type LibrariesHandler struct {
	lister LibraryLister
	logger *logrus.Logger
}

// NewLibrariesHandler creates a new libraries handler
func NewLibrariesHandler(lister LibraryLister, logger *logrus.Logger) *LibrariesHandler {
	return &LibrariesHandler{lister: lister, logger: logger}
}

// ServeHTTP handles GET /api/libraries
func (h *LibrariesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	libraries, err := h.lister.ListLibraries(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list libraries")
		http.Error(w, "Failed to reach media server", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, libraries)
}
