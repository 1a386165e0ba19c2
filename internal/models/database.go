package models

import (
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = bolthold.ErrNotFound

// ErrDuplicateCandidate is returned when inserting would violate the
// one-active-candidate-per-(rule,item) invariant
var ErrDuplicateCandidate = fmt.Errorf("active candidate already exists for this rule and item")

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Rule operations

// CreateRule validates and stores a new rule
func (db *Database) CreateRule(rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), rule)
}

// UpdateRule validates and updates an existing rule
func (db *Database) UpdateRule(rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now()
	return db.store.Update(rule.ID, rule)
}

// GetRule retrieves a rule by ID
func (db *Database) GetRule(id uint64) (*Rule, error) {
	var rule Rule
	if err := db.store.Get(id, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// GetRules retrieves all rules
func (db *Database) GetRules() ([]*Rule, error) {
	var rules []*Rule
	err := db.store.Find(&rules, nil)
	return rules, err
}

// GetEnabledRules retrieves all enabled rules
func (db *Database) GetEnabledRules() ([]*Rule, error) {
	var rules []*Rule
	err := db.store.Find(&rules, bolthold.Where("Enabled").Eq(true))
	return rules, err
}

// DeleteRule deletes a rule and cancels its active candidates in the same
// transaction
func (db *Database) DeleteRule(id uint64) error {
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var candidates []*Candidate
		if err := db.store.TxFind(tx, &candidates, bolthold.Where("RuleID").Eq(id)); err != nil {
			return err
		}
		for _, c := range candidates {
			if !c.State.Active() {
				continue
			}
			c.State = StateCancelled
			c.CancelReason = "rule deleted"
			c.UpdatedAt = time.Now()
			if err := db.store.TxUpdate(tx, c.ID, c); err != nil {
				return err
			}
		}
		return db.store.TxDelete(tx, id, &Rule{})
	})
}

// Candidate operations

// InsertCandidate stores a new candidate, enforcing the uniqueness
// invariant inside a single write transaction: at most one active
// candidate per (rule, item) pair.
func (db *Database) InsertCandidate(candidate *Candidate) error {
	candidate.CreatedAt = time.Now()
	candidate.UpdatedAt = time.Now()
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var existing []*Candidate
		query := bolthold.Where("RuleID").Eq(candidate.RuleID).And("ItemKey").Eq(candidate.ItemKey)
		if err := db.store.TxFind(tx, &existing, query); err != nil {
			return err
		}
		for _, c := range existing {
			if c.State.Active() {
				return ErrDuplicateCandidate
			}
		}
		return db.store.TxInsert(tx, bolthold.NextSequence(), candidate)
	})
}

// MutateCandidate applies fn to the stored candidate inside a single write
// transaction keyed by candidate id, so a crash mid-mutation leaves the
// candidate in its pre-transaction state.
func (db *Database) MutateCandidate(id uint64, fn func(*Candidate) error) error {
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var candidate Candidate
		if err := db.store.TxGet(tx, id, &candidate); err != nil {
			return err
		}
		if err := fn(&candidate); err != nil {
			return err
		}
		candidate.UpdatedAt = time.Now()
		return db.store.TxUpdate(tx, id, &candidate)
	})
}

// GetCandidate retrieves a candidate by ID
func (db *Database) GetCandidate(id uint64) (*Candidate, error) {
	var candidate Candidate
	if err := db.store.Get(id, &candidate); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// ActiveCandidateForItem returns the active candidate for a (rule, item)
// pair, or ErrNotFound
func (db *Database) ActiveCandidateForItem(ruleID uint64, itemKey string) (*Candidate, error) {
	var candidates []*Candidate
	query := bolthold.Where("RuleID").Eq(ruleID).And("ItemKey").Eq(itemKey)
	if err := db.store.Find(&candidates, query); err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.State.Active() {
			return c, nil
		}
	}
	return nil, bolthold.ErrNotFound
}

// ActiveCandidatesByRule returns all active candidates of a rule
func (db *Database) ActiveCandidatesByRule(ruleID uint64) ([]*Candidate, error) {
	var candidates []*Candidate
	if err := db.store.Find(&candidates, bolthold.Where("RuleID").Eq(ruleID)); err != nil {
		return nil, err
	}
	return filterActive(candidates), nil
}

// ActiveCandidatesForShow returns active candidates of a rule belonging to
// one show, used for series-level deletion gating
func (db *Database) ActiveCandidatesForShow(ruleID uint64, showKey string) ([]*Candidate, error) {
	var candidates []*Candidate
	query := bolthold.Where("RuleID").Eq(ruleID).And("ShowKey").Eq(showKey)
	if err := db.store.Find(&candidates, query); err != nil {
		return nil, err
	}
	return filterActive(candidates), nil
}

// DueCandidates returns active candidates whose earliest unfinished action
// is due at or before now
func (db *Database) DueCandidates(now time.Time) ([]*Candidate, error) {
	var candidates []*Candidate
	if err := db.store.Find(&candidates, nil); err != nil {
		return nil, err
	}
	var due []*Candidate
	for _, c := range candidates {
		if !c.State.Active() {
			continue
		}
		next, ok := c.NextDue()
		if ok && !next.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

// GetCandidates returns candidates, optionally filtered by state
func (db *Database) GetCandidates(state CandidateState) ([]*Candidate, error) {
	var candidates []*Candidate
	var err error
	if state == "" {
		err = db.store.Find(&candidates, nil)
	} else {
		err = db.store.Find(&candidates, bolthold.Where("State").Eq(state))
	}
	return candidates, err
}

func filterActive(candidates []*Candidate) []*Candidate {
	var active []*Candidate
	for _, c := range candidates {
		if c.State.Active() {
			active = append(active, c)
		}
	}
	return active
}

// Action log operations

// AppendLog writes one immutable action log entry
func (db *Database) AppendLog(entry *ActionLog) error {
	entry.CreatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), entry)
}

// GetLogs retrieves the most recent action log entries
func (db *Database) GetLogs(limit int) ([]*ActionLog, error) {
	var logs []*ActionLog
	query := &bolthold.Query{}
	err := db.store.Find(&logs, query.SortBy("CreatedAt").Reverse().Limit(limit))
	return logs, err
}
