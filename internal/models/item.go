package models

import "time"

// Library represents one media library section on the server
type Library struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"` // "movie" or "show"
}

// LibraryItem is a point-in-time view of one item in a library snapshot.
// Movies map one-to-one; seasons aggregate from their most-recently-watched
// episode. The core never mutates these.
type LibraryItem struct {
	Key   string
	Type  ItemType
	Title string

	// Season fields (zero values for movies)
	ShowKey       string
	ShowTitle     string
	SeasonNumber  int
	EpisodeCount  int
	LastWatchedEpisodeTitle  string
	LastWatchedEpisodeNumber int

	// LastEngagedAt is the most recent view of the item: for movies the
	// last play, for seasons the most recent episode view. Nil means never
	// watched.
	LastEngagedAt *time.Time

	Collections []string
}

// DaysSinceEngaged returns whole days since the last engagement. ok is
// false for never-watched items; the evaluator decides what absence means.
func (i *LibraryItem) DaysSinceEngaged(now time.Time) (float64, bool) {
	if i.LastEngagedAt == nil {
		return 0, false
	}
	days := now.Sub(*i.LastEngagedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return float64(int(days)), true
}
