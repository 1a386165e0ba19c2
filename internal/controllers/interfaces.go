package controllers

import (
	"context"

	"github.com/amaumene/sweeparr/internal/models"
)

// LibraryConnector is the abstract media-server collaborator. The plex
// package provides the production implementation; tests use fakes.
type LibraryConnector interface {
	// ListItems returns the point-in-time snapshot of a library: movies
	// for movie libraries, seasons for show libraries
	ListItems(ctx context.Context, libraryID string) ([]models.LibraryItem, error)

	// ListSeasons returns all seasons of one show, for series-level
	// deletion gating
	ListSeasons(ctx context.Context, showKey string) ([]models.LibraryItem, error)

	AddToCollection(ctx context.Context, itemKey, name string) error
	RemoveFromCollection(ctx context.Context, itemKey, name string) error
	SetTitle(ctx context.Context, itemKey, title string) error
	ClearTitle(ctx context.Context, itemKey string) error
	DeleteItem(ctx context.Context, itemKey string) error
}

// DeletionService is a managed deletion backend (Radarr for movies, Sonarr
// for series). Lookup reports found=false when the backend does not manage
// the item; the executor then falls back to direct library deletion.
type DeletionService interface {
	LookupExternalID(ctx context.Context, title string) (id int64, found bool, err error)
	DeleteByExternalID(ctx context.Context, id int64) error
}
