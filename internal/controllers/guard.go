package controllers

import (
	"github.com/amaumene/sweeparr/internal/models"
	"github.com/amaumene/sweeparr/internal/utils"
	"github.com/sirupsen/logrus"
)

// SafetyGuard applies the override policies that take precedence over all
// rule logic: protected collections and rewatch cancellation. Guard checks
// never fail a scan; an item with no collection data is simply not
// protected.
type SafetyGuard struct {
	protected *utils.ProtectedSet
	logger    *logrus.Logger
}

// NewSafetyGuard creates a new safety guard
func NewSafetyGuard(protected *utils.ProtectedSet, logger *logrus.Logger) *SafetyGuard {
	return &SafetyGuard{
		protected: protected,
		logger:    logger,
	}
}

// Protected reports whether the item's collections intersect the protected
// set. A protected item is discarded regardless of rule outcome; this
// cannot be disabled per rule.
func (g *SafetyGuard) Protected(item *models.LibraryItem) (bool, string) {
	return g.protected.Match(item.Collections)
}

// Rewatched reports whether the item has been engaged with since the
// candidate was created. A rewatched candidate is cancelled on the next
// scan, before any scheduler tick could execute it.
func (g *SafetyGuard) Rewatched(candidate *models.Candidate, item *models.LibraryItem) bool {
	if item.LastEngagedAt == nil {
		return false
	}
	if candidate.EngagedAtCreation == nil {
		// Item was never watched at creation time; any engagement since
		// counts as a rewatch.
		return true
	}
	return item.LastEngagedAt.After(*candidate.EngagedAtCreation)
}
