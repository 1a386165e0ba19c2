package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/metrics"
	"github.com/amaumene/sweeparr/internal/models"
)

// ActionController executes rule actions against the external services and
// drives due candidates through their delayed actions. Every execution,
// success or failure, writes exactly one action log entry. Rules in
// dry-run mode never cause an external mutating call.
type ActionController struct {
	db      *models.Database
	library LibraryConnector
	radarr  DeletionService // nil when not configured
	sonarr  DeletionService // nil when not configured
	logger  *logrus.Logger

	maxAttempts int

	// newBackoff builds the bounded retry policy wrapped around each
	// external call; tests swap in a zero backoff
	newBackoff func() backoff.BackOff

	// inflight guards single-flight execution per candidate id across
	// overlapping ticks
	inflight sync.Map

	now func() time.Time
}

// NewActionController creates a new action controller. radarr and sonarr
// may be nil; deletion then falls back to the library service.
func NewActionController(db *models.Database, library LibraryConnector, radarr, sonarr DeletionService, maxAttempts int, logger *logrus.Logger) *ActionController {
	return &ActionController{
		db:          db,
		library:     library,
		radarr:      radarr,
		sonarr:      sonarr,
		logger:      logger,
		maxAttempts: maxAttempts,
		newBackoff:  defaultBackoff,
		now:         time.Now,
	}
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// retry wraps one external-service call in the bounded backoff policy
func (c *ActionController) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, backoff.WithContext(c.newBackoff(), ctx))
}

// ExecuteImmediate dispatches a rule's immediate actions for one matched
// item within the scan pass. Delayed actions are passed in only to resolve
// the {deletion_date} title variables.
func (c *ActionController) ExecuteImmediate(ctx context.Context, rule *models.Rule, item *models.LibraryItem, delayed []models.Action) {
	for _, action := range rule.ImmediateActions {
		outcome, detail := c.executeImmediate(ctx, rule, item, action, delayed)
		c.appendLog(rule.ID, item.Key, item.Type, item.Title, action.Type, outcome, detail)
	}
}

func (c *ActionController) executeImmediate(ctx context.Context, rule *models.Rule, item *models.LibraryItem, action models.Action, delayed []models.Action) (models.Outcome, string) {
	if rule.DryRun {
		return models.OutcomeDryRun, fmt.Sprintf("would execute %s", action.Type)
	}

	var err error
	detail := ""
	switch action.Type {
	case models.ActionAddToCollection:
		err = c.retry(ctx, func() error { return c.library.AddToCollection(ctx, item.Key, action.CollectionName) })
		detail = fmt.Sprintf("added to collection %s", action.CollectionName)
	case models.ActionRemoveFromCollection:
		err = c.retry(ctx, func() error { return c.library.RemoveFromCollection(ctx, item.Key, action.CollectionName) })
		detail = fmt.Sprintf("removed from collection %s", action.CollectionName)
	case models.ActionSetTitleFormat:
		title := expandTitleFormat(action.TitleFormat, item.Title, delayed, c.now())
		err = c.retry(ctx, func() error { return c.library.SetTitle(ctx, item.Key, title) })
		detail = fmt.Sprintf("set title to %q", title)
	case models.ActionClearTitleFormat:
		err = c.retry(ctx, func() error { return c.library.ClearTitle(ctx, item.Key) })
		detail = "cleared title format"
	default:
		return models.OutcomeFailed, fmt.Sprintf("unknown immediate action %s", action.Type)
	}

	if err != nil {
		return models.OutcomeFailed, err.Error()
	}
	return models.OutcomeSuccess, detail
}

// expandTitleFormat substitutes the {title}, {deletion_date} and
// {deletion_date_readable} variables. The deletion date is derived from
// the largest configured delay.
func expandTitleFormat(format, title string, delayed []models.Action, now time.Time) string {
	out := strings.ReplaceAll(format, "{title}", title)

	maxDelay := 0
	for _, action := range delayed {
		if action.DelayDays > maxDelay {
			maxDelay = action.DelayDays
		}
	}
	if maxDelay > 0 {
		date := now.AddDate(0, 0, maxDelay)
		out = strings.ReplaceAll(out, "{deletion_date}", date.Format("2006-01-02"))
		out = strings.ReplaceAll(out, "{deletion_date_readable}", date.Format("January 2, 2006"))
	}
	return out
}

// RunDueActions is the scheduler tick: it selects candidates whose earliest
// unfinished action is due and processes each exactly once, single-flight
// per candidate id.
func (c *ActionController) RunDueActions(ctx context.Context) error {
	now := c.now()
	due, err := c.db.DueCandidates(now)
	if err != nil {
		return fmt.Errorf("failed to find due candidates: %w", err)
	}

	if len(due) == 0 {
		c.logger.Debug("No due candidates")
		return nil
	}

	c.logger.WithField("count", len(due)).Info("Processing due candidates")

	for _, candidate := range due {
		if _, loaded := c.inflight.LoadOrStore(candidate.ID, struct{}{}); loaded {
			c.logger.WithField("candidate_id", candidate.ID).Debug("Candidate already in flight, skipping")
			continue
		}
		c.processCandidate(ctx, candidate, now)
		c.inflight.Delete(candidate.ID)
	}

	c.updateBacklogGauge()
	return nil
}

func (c *ActionController) processCandidate(ctx context.Context, candidate *models.Candidate, now time.Time) {
	log := c.logger.WithFields(logrus.Fields{
		"candidate_id": candidate.ID,
		"item":         candidate.ItemTitle,
	})

	rule, err := c.db.GetRule(candidate.RuleID)
	if err != nil {
		log.WithError(err).Error("Failed to load rule for candidate, leaving candidate due")
		return
	}

	if candidate.State == models.StatePending {
		if err := c.db.MutateCandidate(candidate.ID, func(stored *models.Candidate) error {
			if stored.State == models.StatePending {
				stored.State = models.StateDue
			}
			return nil
		}); err != nil {
			log.WithError(err).Error("Failed to mark candidate due")
			return
		}
	}

	for i := range candidate.Actions {
		planned := &candidate.Actions[i]
		if planned.Done || planned.Abandoned || planned.ScheduledDate.After(now) {
			continue
		}

		outcome, detail := c.executeDelayed(ctx, rule, candidate, planned.Action)
		c.appendLog(rule.ID, candidate.ItemKey, candidate.ItemType, candidate.ItemTitle, planned.Action.Type, outcome, detail)

		index := i
		mutErr := c.db.MutateCandidate(candidate.ID, func(stored *models.Candidate) error {
			if index >= len(stored.Actions) {
				return nil
			}
			pa := &stored.Actions[index]
			switch outcome {
			case models.OutcomeSuccess, models.OutcomeDryRun:
				pa.Done = true
				pa.LastError = ""
			case models.OutcomeFailed:
				pa.Attempts++
				pa.LastError = detail
				if pa.Attempts >= c.maxAttempts {
					pa.Abandoned = true
				}
			}
			if stored.AllDone() {
				stored.State = models.StateExecuted
			}
			return nil
		})
		if mutErr != nil {
			// Persistence failure: the action ran but its bookkeeping did
			// not commit; the candidate stays in its pre-transaction state
			// and is retried next tick.
			log.WithError(mutErr).Error("Failed to persist candidate action state")
			return
		}

		if outcome == models.OutcomeFailed {
			log.WithFields(logrus.Fields{
				"action": planned.Action.Type,
				"detail": detail,
			}).Warn("Delayed action failed, candidate stays due")
		}
	}
}

// executeDelayed performs one delayed action. Deletions prefer the managed
// service and fall back to direct library removal when the service is not
// configured or does not manage the item.
func (c *ActionController) executeDelayed(ctx context.Context, rule *models.Rule, candidate *models.Candidate, action models.Action) (models.Outcome, string) {
	if rule.DryRun {
		return models.OutcomeDryRun, fmt.Sprintf("would execute %s", action.Type)
	}

	switch action.Type {
	case models.ActionDeleteViaRadarr:
		return c.deleteMovie(ctx, candidate)
	case models.ActionDeleteViaSonarr:
		return c.deleteSeason(ctx, rule, candidate)
	case models.ActionDeleteInPlex:
		if err := c.retry(ctx, func() error { return c.library.DeleteItem(ctx, candidate.ItemKey) }); err != nil {
			return models.OutcomeFailed, err.Error()
		}
		return models.OutcomeSuccess, "deleted from library"
	case models.ActionRemoveFromCollection:
		if err := c.retry(ctx, func() error {
			return c.library.RemoveFromCollection(ctx, candidate.ItemKey, action.CollectionName)
		}); err != nil {
			return models.OutcomeFailed, err.Error()
		}
		return models.OutcomeSuccess, fmt.Sprintf("removed from collection %s", action.CollectionName)
	case models.ActionClearTitleFormat:
		if err := c.retry(ctx, func() error { return c.library.ClearTitle(ctx, candidate.ItemKey) }); err != nil {
			return models.OutcomeFailed, err.Error()
		}
		return models.OutcomeSuccess, "cleared title format"
	}

	return models.OutcomeFailed, fmt.Sprintf("unknown delayed action %s", action.Type)
}

// deleteMovie deletes via Radarr when it manages the movie, otherwise
// falls back to removing it from the library directly
func (c *ActionController) deleteMovie(ctx context.Context, candidate *models.Candidate) (models.Outcome, string) {
	if c.radarr != nil {
		var id int64
		var found bool
		err := c.retry(ctx, func() error {
			var lookupErr error
			id, found, lookupErr = c.radarr.LookupExternalID(ctx, candidate.ItemTitle)
			return lookupErr
		})
		if err != nil {
			return models.OutcomeFailed, fmt.Sprintf("radarr lookup failed: %v", err)
		}
		if found {
			if err := c.retry(ctx, func() error { return c.radarr.DeleteByExternalID(ctx, id) }); err != nil {
				return models.OutcomeFailed, fmt.Sprintf("radarr deletion failed: %v", err)
			}
			return models.OutcomeSuccess, "deleted via Radarr"
		}
	}

	if err := c.retry(ctx, func() error { return c.library.DeleteItem(ctx, candidate.ItemKey) }); err != nil {
		return models.OutcomeFailed, err.Error()
	}
	if c.radarr == nil {
		return models.OutcomeSuccess, "Radarr not configured, deleted via library"
	}
	return models.OutcomeSuccess, "movie not found in Radarr, deleted via library"
}

// deleteSeason handles DELETE_VIA_SONARR. Series-level deletion is only
// permitted when every season of the show independently holds an active
// candidate; a partial match deletes just this season from the library.
func (c *ActionController) deleteSeason(ctx context.Context, rule *models.Rule, candidate *models.Candidate) (models.Outcome, string) {
	allQualify, err := c.allSeasonsQualify(ctx, rule, candidate)
	if err != nil {
		return models.OutcomeFailed, fmt.Sprintf("season qualification check failed: %v", err)
	}

	if allQualify && c.sonarr != nil {
		var id int64
		var found bool
		err := c.retry(ctx, func() error {
			var lookupErr error
			id, found, lookupErr = c.sonarr.LookupExternalID(ctx, candidate.ShowTitle)
			return lookupErr
		})
		if err != nil {
			return models.OutcomeFailed, fmt.Sprintf("sonarr lookup failed: %v", err)
		}
		if found {
			if err := c.retry(ctx, func() error { return c.sonarr.DeleteByExternalID(ctx, id) }); err != nil {
				return models.OutcomeFailed, fmt.Sprintf("sonarr deletion failed: %v", err)
			}
			return models.OutcomeSuccess, "all seasons qualified, deleted series via Sonarr"
		}
	}

	if err := c.retry(ctx, func() error { return c.library.DeleteItem(ctx, candidate.ItemKey) }); err != nil {
		return models.OutcomeFailed, err.Error()
	}
	if !allQualify {
		return models.OutcomeSuccess, "not all seasons qualify, deleted season via library"
	}
	return models.OutcomeSuccess, "series not managed by Sonarr, deleted season via library"
}

// allSeasonsQualify reports whether every season of the candidate's show
// holds an active candidate under the same rule
func (c *ActionController) allSeasonsQualify(ctx context.Context, rule *models.Rule, candidate *models.Candidate) (bool, error) {
	var seasons []models.LibraryItem
	err := c.retry(ctx, func() error {
		var listErr error
		seasons, listErr = c.library.ListSeasons(ctx, candidate.ShowKey)
		return listErr
	})
	if err != nil {
		return false, err
	}

	siblings, err := c.db.ActiveCandidatesForShow(rule.ID, candidate.ShowKey)
	if err != nil {
		return false, err
	}
	covered := make(map[string]bool, len(siblings))
	for _, sibling := range siblings {
		covered[sibling.ItemKey] = true
	}

	for _, season := range seasons {
		if !covered[season.Key] {
			return false, nil
		}
	}
	return len(seasons) > 0, nil
}

// ErrCandidateTerminal is returned when a manual override targets a
// candidate that has already executed or been cancelled.
var ErrCandidateTerminal = errors.New("candidate is in a terminal state")

// CancelCandidate cancels an active candidate by manual override
func (c *ActionController) CancelCandidate(id uint64) error {
	err := c.db.MutateCandidate(id, func(candidate *models.Candidate) error {
		if candidate.State.Terminal() {
			return fmt.Errorf("candidate %d is already %s: %w", id, candidate.State, ErrCandidateTerminal)
		}
		candidate.State = models.StateCancelled
		candidate.CancelReason = "manual override"
		return nil
	})
	if err != nil {
		return err
	}
	metrics.CandidatesCancelled.Inc()
	c.updateBacklogGauge()
	c.logger.WithField("candidate_id", id).Info("Candidate cancelled by manual override")
	return nil
}

func (c *ActionController) appendLog(ruleID uint64, itemKey string, itemType models.ItemType, itemTitle string, actionType models.ActionType, outcome models.Outcome, detail string) {
	entry := &models.ActionLog{
		RuleID:     ruleID,
		ItemKey:    itemKey,
		ItemType:   itemType,
		ItemTitle:  itemTitle,
		ActionType: actionType,
		Outcome:    outcome,
		Detail:     detail,
	}
	if err := c.db.AppendLog(entry); err != nil {
		c.logger.WithError(err).Error("Failed to append action log entry")
	}
	metrics.ActionsTotal.WithLabelValues(string(outcome)).Inc()
}

func (c *ActionController) updateBacklogGauge() {
	pending, err := c.db.GetCandidates(models.StatePending)
	if err != nil {
		return
	}
	due, err := c.db.GetCandidates(models.StateDue)
	if err != nil {
		return
	}
	metrics.ActiveCandidates.Set(float64(len(pending) + len(due)))
}
