package models

import "time"

// PlannedAction is one delayed action attached to a candidate, carrying
// its own schedule and execution bookkeeping. An action whose attempts are
// exhausted keeps its failure marker but is no longer retried.
type PlannedAction struct {
	Action        Action
	ScheduledDate time.Time
	Done          bool
	Attempts      int
	LastError     string
	Abandoned     bool
}

// Candidate is the unique pairing of one library item and one rule that
// currently has at least one pending delayed action. At most one active
// candidate exists per (rule, item) pair; the store enforces this.
type Candidate struct {
	ID       uint64 `boltholdKey:"ID"`
	RuleID   uint64 `boltholdIndex:"RuleID"`
	ItemKey  string `boltholdIndex:"ItemKey"`
	ItemType ItemType

	ItemTitle    string
	ShowKey      string
	ShowTitle    string
	SeasonNumber int
	EpisodeCount int

	LastWatchedEpisodeTitle  string
	LastWatchedEpisodeNumber int

	Reason  string
	Actions []PlannedAction
	State   CandidateState `boltholdIndex:"State"`

	// EngagedAtCreation records the item's last-engaged timestamp observed
	// when the candidate was created. A later engagement cancels the
	// candidate (rewatch cancellation).
	EngagedAtCreation *time.Time

	CancelReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NextDue returns the earliest scheduled date among unfinished,
// non-abandoned actions. ok is false when no such action remains.
func (c *Candidate) NextDue() (time.Time, bool) {
	var next time.Time
	found := false
	for _, pa := range c.Actions {
		if pa.Done || pa.Abandoned {
			continue
		}
		if !found || pa.ScheduledDate.Before(next) {
			next = pa.ScheduledDate
			found = true
		}
	}
	return next, found
}

// AllDone reports whether every planned action has completed
func (c *Candidate) AllDone() bool {
	for _, pa := range c.Actions {
		if !pa.Done {
			return false
		}
	}
	return len(c.Actions) > 0
}

// HasFailure reports whether any action carries a failure marker
func (c *Candidate) HasFailure() bool {
	for _, pa := range c.Actions {
		if pa.LastError != "" && !pa.Done {
			return true
		}
	}
	return false
}

// SameDelayedConfig reports whether the candidate's planned actions match
// the given rule configuration (type, delay and parameters, in order).
// Re-matching with an unchanged configuration must not move scheduled
// dates, so the planner checks this before rescheduling.
func (c *Candidate) SameDelayedConfig(actions []Action) bool {
	if len(c.Actions) != len(actions) {
		return false
	}
	for i, pa := range c.Actions {
		if pa.Action != actions[i] {
			return false
		}
	}
	return true
}

// ActionLog is an immutable record of one action attempt. Entries are only
// ever appended, never mutated or deleted.
type ActionLog struct {
	ID         uint64 `boltholdKey:"ID"`
	RuleID     uint64 `boltholdIndex:"RuleID"`
	ItemKey    string
	ItemType   ItemType
	ItemTitle  string
	ActionType ActionType
	Outcome    Outcome
	Detail     string
	CreatedAt  time.Time
}
