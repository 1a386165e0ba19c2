package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/metrics"
	"github.com/amaumene/sweeparr/internal/models"
	"github.com/amaumene/sweeparr/internal/rules"
)

// ScanSummary reports the outcome of scanning one rule
type ScanSummary struct {
	RuleID              uint64 `json:"rule_id"`
	RuleName            string `json:"rule_name"`
	Matched             int    `json:"matched"`
	CandidatesCreated   int    `json:"candidates_created"`
	CandidatesCancelled int    `json:"candidates_cancelled"`
	Error               string `json:"error,omitempty"`
}

// ScanController pulls library snapshots, evaluates rules, applies the
// safety guard, and plans actions. Scans of the same rule are serialized
// by a per-rule mutex; a manual scan during a scheduled scan of that rule
// waits instead of running concurrently.
type ScanController struct {
	db       *models.Database
	library  LibraryConnector
	guard    *SafetyGuard
	executor *ActionController
	logger   *logrus.Logger

	ruleLocks sync.Map // rule id -> *sync.Mutex

	now func() time.Time
}

// NewScanController creates a new scan controller
func NewScanController(db *models.Database, library LibraryConnector, guard *SafetyGuard, executor *ActionController, logger *logrus.Logger) *ScanController {
	return &ScanController{
		db:       db,
		library:  library,
		guard:    guard,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *ScanController) lockRule(ruleID uint64) func() {
	mu, _ := c.ruleLocks.LoadOrStore(ruleID, &sync.Mutex{})
	mutex := mu.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

// ScanAll scans every enabled rule and returns one summary per rule.
// Individual rule failures are reported in the summary, not fatal to the
// whole pass.
func (c *ScanController) ScanAll(ctx context.Context) ([]ScanSummary, error) {
	enabled, err := c.db.GetEnabledRules()
	if err != nil {
		return nil, fmt.Errorf("failed to load enabled rules: %w", err)
	}

	summaries := make([]ScanSummary, 0, len(enabled))
	for _, rule := range enabled {
		summary, err := c.ScanRule(ctx, rule.ID)
		if err != nil {
			summary = ScanSummary{RuleID: rule.ID, RuleName: rule.Name, Error: err.Error()}
			c.logger.WithError(err).WithField("rule_id", rule.ID).Error("Rule scan failed")
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ScanRule evaluates one rule against a fresh library snapshot: it runs
// the rewatch check for every active candidate, plans actions for matches
// that pass the safety guard, and cancels candidates whose items no longer
// match.
func (c *ScanController) ScanRule(ctx context.Context, ruleID uint64) (ScanSummary, error) {
	unlock := c.lockRule(ruleID)
	defer unlock()

	rule, err := c.db.GetRule(ruleID)
	if err != nil {
		return ScanSummary{}, fmt.Errorf("failed to load rule %d: %w", ruleID, err)
	}

	summary := ScanSummary{RuleID: rule.ID, RuleName: rule.Name}
	if !rule.Enabled {
		c.logger.WithField("rule", rule.Name).Debug("Rule disabled, skipping scan")
		return summary, nil
	}

	log := c.logger.WithFields(logrus.Fields{
		"rule":    rule.Name,
		"library": rule.LibraryID,
	})
	log.Info("Scanning rule")

	items, err := c.library.ListItems(ctx, rule.LibraryID)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return ScanSummary{}, fmt.Errorf("failed to list library items: %w", err)
	}

	now := c.now()
	itemsByKey := make(map[string]*models.LibraryItem, len(items))
	for i := range items {
		itemsByKey[items[i].Key] = &items[i]
	}

	// Rewatch cancellation runs first, on every scan cycle, so a watched
	// candidate can never be executed by a tick that fires between match
	// and cancellation.
	cancelled, err := c.cancelRewatched(rule, itemsByKey)
	if err != nil {
		return ScanSummary{}, err
	}
	summary.CandidatesCancelled += cancelled

	matchedKeys := make(map[string]bool)
	for i := range items {
		item := &items[i]

		matched, results := rules.Evaluate(item, rule.Conditions, rule.Logic, now)
		c.logDiagnostics(log, item, results)
		if !matched {
			continue
		}

		if protected, name := c.guard.Protected(item); protected {
			log.WithFields(logrus.Fields{
				"item":       item.Title,
				"collection": name,
			}).Debug("Item protected by collection, match discarded")
			continue
		}

		matchedKeys[item.Key] = true
		summary.Matched++

		// Re-read the enabled flag so a rule disabled mid-scan suppresses
		// all new planning while the scan itself completes.
		fresh, err := c.db.GetRule(ruleID)
		if err != nil {
			return ScanSummary{}, fmt.Errorf("failed to re-load rule %d: %w", ruleID, err)
		}
		if !fresh.Enabled {
			log.Debug("Rule disabled mid-scan, suppressing candidate creation")
			continue
		}

		c.executor.ExecuteImmediate(ctx, rule, item, rule.DelayedActions)

		if len(rule.DelayedActions) > 0 {
			created, err := c.upsertCandidate(rule, item, now)
			if err != nil {
				return ScanSummary{}, err
			}
			if created {
				summary.CandidatesCreated++
			}
		}
	}

	cancelled, err = c.cancelUnmatched(rule, itemsByKey, matchedKeys)
	if err != nil {
		return ScanSummary{}, err
	}
	summary.CandidatesCancelled += cancelled

	metrics.ScansTotal.WithLabelValues("ok").Inc()
	c.executor.updateBacklogGauge()
	log.WithFields(logrus.Fields{
		"matched":   summary.Matched,
		"created":   summary.CandidatesCreated,
		"cancelled": summary.CandidatesCancelled,
	}).Info("Rule scan completed")
	return summary, nil
}

func (c *ScanController) logDiagnostics(log *logrus.Entry, item *models.LibraryItem, results []rules.ConditionResult) {
	for _, result := range results {
		entry := log.WithFields(logrus.Fields{
			"item":     item.Title,
			"field":    result.Condition.Field,
			"operator": result.Condition.Operator,
			"matched":  result.Matched,
		})
		switch {
		case result.Err != "":
			entry.WithField("error", result.Err).Warn("Condition failed to evaluate, treated as non-matching")
		case result.Skipped:
			entry.Warn("Condition skipped: empty comparison value")
		default:
			entry.Trace("Condition evaluated")
		}
	}
}

// upsertCandidate creates or refreshes the active candidate for a matched
// item. Re-matching with an unchanged delayed-action configuration never
// moves scheduled dates: the delay counts from first match, so repeated
// scans cannot postpone a deletion indefinitely.
func (c *ScanController) upsertCandidate(rule *models.Rule, item *models.LibraryItem, now time.Time) (bool, error) {
	existing, err := c.db.ActiveCandidateForItem(rule.ID, item.Key)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return false, fmt.Errorf("failed to look up candidate: %w", err)
	}

	if existing != nil {
		mutErr := c.db.MutateCandidate(existing.ID, func(stored *models.Candidate) error {
			if !stored.State.Active() {
				return nil
			}
			if !stored.SameDelayedConfig(rule.DelayedActions) {
				// Rule configuration changed: plan afresh from this
				// evaluation time.
				stored.Actions = planActions(rule.DelayedActions, now)
				stored.State = models.StatePending
			}
			stored.EpisodeCount = item.EpisodeCount
			stored.LastWatchedEpisodeTitle = item.LastWatchedEpisodeTitle
			stored.LastWatchedEpisodeNumber = item.LastWatchedEpisodeNumber
			return nil
		})
		if mutErr != nil {
			return false, fmt.Errorf("failed to refresh candidate: %w", mutErr)
		}
		return false, nil
	}

	candidate := &models.Candidate{
		RuleID:            rule.ID,
		ItemKey:           item.Key,
		ItemType:          item.Type,
		ItemTitle:         item.Title,
		ShowKey:           item.ShowKey,
		ShowTitle:         item.ShowTitle,
		SeasonNumber:      item.SeasonNumber,
		EpisodeCount:      item.EpisodeCount,
		LastWatchedEpisodeTitle:  item.LastWatchedEpisodeTitle,
		LastWatchedEpisodeNumber: item.LastWatchedEpisodeNumber,
		Reason:            fmt.Sprintf("matched rule %q", rule.Name),
		Actions:           planActions(rule.DelayedActions, now),
		State:             models.StatePending,
		EngagedAtCreation: item.LastEngagedAt,
	}

	if err := c.db.InsertCandidate(candidate); err != nil {
		if errors.Is(err, models.ErrDuplicateCandidate) {
			// Lost a race with another writer; the existing candidate wins.
			return false, nil
		}
		return false, fmt.Errorf("failed to insert candidate: %w", err)
	}
	metrics.CandidatesCreated.Inc()
	return true, nil
}

// planActions computes one planned action per configured delayed action,
// each with scheduled_date = evaluation time + delay days. A zero delay
// means due on the next scheduler tick, not synchronous.
func planActions(delayed []models.Action, evaluationTime time.Time) []models.PlannedAction {
	planned := make([]models.PlannedAction, 0, len(delayed))
	for _, action := range delayed {
		planned = append(planned, models.PlannedAction{
			Action:        action,
			ScheduledDate: evaluationTime.AddDate(0, 0, action.DelayDays),
		})
	}
	return planned
}

func (c *ScanController) cancelRewatched(rule *models.Rule, itemsByKey map[string]*models.LibraryItem) (int, error) {
	active, err := c.db.ActiveCandidatesByRule(rule.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load active candidates: %w", err)
	}

	cancelled := 0
	for _, candidate := range active {
		item, ok := itemsByKey[candidate.ItemKey]
		if !ok || !c.guard.Rewatched(candidate, item) {
			continue
		}
		if err := c.cancel(candidate.ID, "watched again after candidate was created"); err != nil {
			return cancelled, err
		}
		cancelled++
		c.logger.WithFields(logrus.Fields{
			"rule": rule.Name,
			"item": candidate.ItemTitle,
		}).Info("Candidate cancelled: rewatch detected")
	}
	return cancelled, nil
}

func (c *ScanController) cancelUnmatched(rule *models.Rule, itemsByKey map[string]*models.LibraryItem, matchedKeys map[string]bool) (int, error) {
	active, err := c.db.ActiveCandidatesByRule(rule.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load active candidates: %w", err)
	}

	cancelled := 0
	for _, candidate := range active {
		if matchedKeys[candidate.ItemKey] {
			continue
		}
		reason := "no longer matches rule conditions"
		if _, ok := itemsByKey[candidate.ItemKey]; !ok {
			reason = "item no longer present in library"
		}
		if err := c.cancel(candidate.ID, reason); err != nil {
			return cancelled, err
		}
		cancelled++
		c.logger.WithFields(logrus.Fields{
			"rule":   rule.Name,
			"item":   candidate.ItemTitle,
			"reason": reason,
		}).Info("Candidate cancelled")
	}
	return cancelled, nil
}

func (c *ScanController) cancel(candidateID uint64, reason string) error {
	err := c.db.MutateCandidate(candidateID, func(candidate *models.Candidate) error {
		if candidate.State.Terminal() {
			return nil
		}
		candidate.State = models.StateCancelled
		candidate.CancelReason = reason
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel candidate %d: %w", candidateID, err)
	}
	metrics.CandidatesCancelled.Inc()
	return nil
}
