package controllers

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/models"
	"github.com/amaumene/sweeparr/internal/utils"
)

var scanTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeLibrary implements LibraryConnector and records mutating calls
type fakeLibrary struct {
	items   map[string][]models.LibraryItem
	seasons map[string][]models.LibraryItem

	deleted    []string
	added      []string
	removed    []string
	titlesSet  map[string]string
	cleared    []string
	deleteErr  error
	mutations  int
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		items:     make(map[string][]models.LibraryItem),
		seasons:   make(map[string][]models.LibraryItem),
		titlesSet: make(map[string]string),
	}
}

func (f *fakeLibrary) ListItems(ctx context.Context, libraryID string) ([]models.LibraryItem, error) {
	return f.items[libraryID], nil
}

func (f *fakeLibrary) ListSeasons(ctx context.Context, showKey string) ([]models.LibraryItem, error) {
	return f.seasons[showKey], nil
}

func (f *fakeLibrary) AddToCollection(ctx context.Context, itemKey, name string) error {
	f.mutations++
	f.added = append(f.added, itemKey+":"+name)
	return nil
}

func (f *fakeLibrary) RemoveFromCollection(ctx context.Context, itemKey, name string) error {
	f.mutations++
	f.removed = append(f.removed, itemKey+":"+name)
	return nil
}

func (f *fakeLibrary) SetTitle(ctx context.Context, itemKey, title string) error {
	f.mutations++
	f.titlesSet[itemKey] = title
	return nil
}

func (f *fakeLibrary) ClearTitle(ctx context.Context, itemKey string) error {
	f.mutations++
	f.cleared = append(f.cleared, itemKey)
	return nil
}

func (f *fakeLibrary) DeleteItem(ctx context.Context, itemKey string) error {
	f.mutations++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, itemKey)
	return nil
}

// fakeDeletion implements DeletionService
type fakeDeletion struct {
	ids       map[string]int64
	deleted   []int64
	lookupErr error
	deleteErr error
	mutations int
}

func (f *fakeDeletion) LookupExternalID(ctx context.Context, title string) (int64, bool, error) {
	if f.lookupErr != nil {
		return 0, false, f.lookupErr
	}
	id, ok := f.ids[title]
	return id, ok, nil
}

func (f *fakeDeletion) DeleteByExternalID(ctx context.Context, id int64) error {
	f.mutations++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type testEnv struct {
	db       *models.Database
	library  *fakeLibrary
	radarr   *fakeDeletion
	sonarr   *fakeDeletion
	actCtrl  *ActionController
	scanCtrl *ScanController
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	library := newFakeLibrary()
	radarr := &fakeDeletion{ids: make(map[string]int64)}
	sonarr := &fakeDeletion{ids: make(map[string]int64)}

	actCtrl := NewActionController(db, library, radarr, sonarr, 2, logger)
	actCtrl.now = func() time.Time { return scanTime }
	actCtrl.newBackoff = func() backoff.BackOff { return &backoff.StopBackOff{} }

	guard := NewSafetyGuard(utils.NewProtectedSet([]string{"Keep", "Favorites", "Behalten"}), logger)
	scanCtrl := NewScanController(db, library, guard, actCtrl, logger)
	scanCtrl.now = func() time.Time { return scanTime }

	return &testEnv{
		db:       db,
		library:  library,
		radarr:   radarr,
		sonarr:   sonarr,
		actCtrl:  actCtrl,
		scanCtrl: scanCtrl,
	}
}

func (e *testEnv) createRule(t *testing.T, rule *models.Rule) *models.Rule {
	t.Helper()
	if err := e.db.CreateRule(rule); err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}
	return rule
}

func oldMovieRule() *models.Rule {
	return &models.Rule{
		Name:      "delete old movies",
		LibraryID: "1",
		Enabled:   true,
		Logic:     models.LogicAnd,
		Conditions: []models.Condition{
			{Field: "movie.lastPlayedDays", Operator: models.OpGreaterThan, Number: 90},
		},
		DelayedActions: []models.Action{
			{Type: models.ActionDeleteViaRadarr, DelayDays: 7},
		},
	}
}

func oldMovie(key string, daysAgo int) models.LibraryItem {
	watched := scanTime.AddDate(0, 0, -daysAgo)
	return models.LibraryItem{
		Key:           key,
		Type:          models.ItemTypeMovie,
		Title:         "Old Movie " + key,
		LastEngagedAt: &watched,
	}
}

func TestScanCreatesCandidate(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}

	summary, err := env.scanCtrl.ScanRule(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Matched != 1 || summary.CandidatesCreated != 1 {
		t.Fatalf("Expected 1 match and 1 candidate, got %d/%d", summary.Matched, summary.CandidatesCreated)
	}

	candidate, err := env.db.ActiveCandidateForItem(rule.ID, "m1")
	if err != nil {
		t.Fatalf("Expected active candidate: %v", err)
	}
	if candidate.State != models.StatePending {
		t.Errorf("Expected pending state, got %s", candidate.State)
	}
	wantDate := scanTime.AddDate(0, 0, 7)
	if !candidate.Actions[0].ScheduledDate.Equal(wantDate) {
		t.Errorf("Expected scheduled date %v, got %v", wantDate, candidate.Actions[0].ScheduledDate)
	}
	if candidate.EngagedAtCreation == nil {
		t.Errorf("Expected engagement timestamp to be recorded at creation")
	}
}

func TestRepeatedScanDoesNotExtendSchedule(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	first, err := env.db.ActiveCandidateForItem(rule.ID, "m1")
	if err != nil {
		t.Fatalf("Expected candidate: %v", err)
	}

	// A later scan with unchanged configuration must not move the schedule.
	env.scanCtrl.now = func() time.Time { return scanTime.AddDate(0, 0, 3) }
	summary, err := env.scanCtrl.ScanRule(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	if summary.CandidatesCreated != 0 {
		t.Errorf("Expected no new candidate on re-match, got %d", summary.CandidatesCreated)
	}

	second, err := env.db.ActiveCandidateForItem(rule.ID, "m1")
	if err != nil {
		t.Fatalf("Expected candidate to survive: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected the same candidate, got a new one")
	}
	if !second.Actions[0].ScheduledDate.Equal(first.Actions[0].ScheduledDate) {
		t.Errorf("Expected scheduled date unchanged, got %v", second.Actions[0].ScheduledDate)
	}
}

func TestConfigChangeReschedules(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	rule.DelayedActions[0].DelayDays = 14
	if err := env.db.UpdateRule(rule); err != nil {
		t.Fatalf("Failed to update rule: %v", err)
	}

	later := scanTime.AddDate(0, 0, 2)
	env.scanCtrl.now = func() time.Time { return later }
	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}

	candidate, err := env.db.ActiveCandidateForItem(rule.ID, "m1")
	if err != nil {
		t.Fatalf("Expected candidate: %v", err)
	}
	wantDate := later.AddDate(0, 0, 14)
	if !candidate.Actions[0].ScheduledDate.Equal(wantDate) {
		t.Errorf("Expected reschedule from the new evaluation time, got %v", candidate.Actions[0].ScheduledDate)
	}
}

func TestProtectedCollectionDiscardsMatch(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	item := oldMovie("m1", 120)
	item.Collections = []string{"keep"} // case differs from the configured name
	env.library.items["1"] = []models.LibraryItem{item}

	summary, err := env.scanCtrl.ScanRule(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Matched != 0 || summary.CandidatesCreated != 0 {
		t.Errorf("Expected protected item to be discarded, got %d matches", summary.Matched)
	}
	if _, err := env.db.ActiveCandidateForItem(rule.ID, "m1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected no candidate for protected item")
	}
}

func TestRewatchCancelsCandidate(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	candidate, err := env.db.ActiveCandidateForItem(rule.ID, "m1")
	if err != nil {
		t.Fatalf("Expected candidate: %v", err)
	}

	// The item is watched again before any action runs.
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 1)}
	env.scanCtrl.now = func() time.Time { return scanTime.AddDate(0, 0, 2) }

	summary, err := env.scanCtrl.ScanRule(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	if summary.CandidatesCancelled != 1 {
		t.Fatalf("Expected 1 cancellation, got %d", summary.CandidatesCancelled)
	}

	loaded, err := env.db.GetCandidate(candidate.ID)
	if err != nil {
		t.Fatalf("Failed to load candidate: %v", err)
	}
	if loaded.State != models.StateCancelled {
		t.Errorf("Expected cancelled state, got %s", loaded.State)
	}

	// The cancelled candidate never executes, even once its date passes.
	env.actCtrl.now = func() time.Time { return scanTime.AddDate(0, 0, 10) }
	if err := env.actCtrl.RunDueActions(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(env.library.deleted) != 0 || len(env.radarr.deleted) != 0 {
		t.Errorf("Expected no deletion after rewatch cancellation")
	}
}

func TestUnmatchedItemCancelsCandidate(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// The item disappears from the library snapshot.
	env.library.items["1"] = nil
	summary, err := env.scanCtrl.ScanRule(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	if summary.CandidatesCancelled != 1 {
		t.Errorf("Expected cancellation for missing item, got %d", summary.CandidatesCancelled)
	}
}

func TestDisabledRuleSkipsScan(t *testing.T) {
	env := newTestEnv(t)
	rule := oldMovieRule()
	rule.Enabled = false
	env.createRule(t, rule)
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}

	summary, err := env.scanCtrl.ScanRule(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if summary.Matched != 0 {
		t.Errorf("Expected disabled rule to be skipped")
	}
}

func TestLifecycleThroughExecution(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}
	env.radarr.ids["Old Movie m1"] = 42

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// A tick before the scheduled date does nothing.
	env.actCtrl.now = func() time.Time { return scanTime.AddDate(0, 0, 3) }
	if err := env.actCtrl.RunDueActions(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(env.radarr.deleted) != 0 {
		t.Fatalf("Expected no deletion before the scheduled date")
	}

	// A tick past the scheduled date executes exactly once.
	env.actCtrl.now = func() time.Time { return scanTime.AddDate(0, 0, 8) }
	if err := env.actCtrl.RunDueActions(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(env.radarr.deleted) != 1 || env.radarr.deleted[0] != 42 {
		t.Fatalf("Expected deletion via managed service, got %v", env.radarr.deleted)
	}
	if len(env.library.deleted) != 0 {
		t.Errorf("Expected no direct library deletion when the service manages the item")
	}

	candidate, err := env.db.ActiveCandidateForItem(rule.ID, "m1")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Expected no active candidate after execution, got %v", candidate)
	}
	executed, err := env.db.GetCandidates(models.StateExecuted)
	if err != nil || len(executed) != 1 {
		t.Fatalf("Expected exactly one executed candidate, got %d (%v)", len(executed), err)
	}

	logs, err := env.db.GetLogs(10)
	if err != nil {
		t.Fatalf("Failed to get logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("Expected exactly one log entry, got %d", len(logs))
	}
	if logs[0].Outcome != models.OutcomeSuccess || logs[0].ActionType != models.ActionDeleteViaRadarr {
		t.Errorf("Unexpected log entry: %s %s", logs[0].ActionType, logs[0].Outcome)
	}
}

func TestDeletionFallsBackToLibrary(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}
	// Radarr does not manage this movie.

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	env.actCtrl.now = func() time.Time { return scanTime.AddDate(0, 0, 8) }
	if err := env.actCtrl.RunDueActions(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if len(env.library.deleted) != 1 || env.library.deleted[0] != "m1" {
		t.Fatalf("Expected library fallback deletion, got %v", env.library.deleted)
	}
	if len(env.radarr.deleted) != 0 {
		t.Errorf("Expected no managed deletion")
	}
}

func TestDryRunNeverTouchesExternalServices(t *testing.T) {
	env := newTestEnv(t)
	rule := oldMovieRule()
	rule.DryRun = true
	rule.ImmediateActions = []models.Action{
		{Type: models.ActionAddToCollection, CollectionName: "Leaving Soon"},
	}
	env.createRule(t, rule)
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}
	env.radarr.ids["Old Movie m1"] = 42

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	env.actCtrl.now = func() time.Time { return scanTime.AddDate(0, 0, 8) }
	if err := env.actCtrl.RunDueActions(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if env.library.mutations != 0 || env.radarr.mutations != 0 {
		t.Fatalf("Expected zero external mutations in dry run, got %d library / %d radarr",
			env.library.mutations, env.radarr.mutations)
	}

	// State still advances so the run shows what would have happened.
	executed, err := env.db.GetCandidates(models.StateExecuted)
	if err != nil || len(executed) != 1 {
		t.Fatalf("Expected candidate to complete notionally, got %d (%v)", len(executed), err)
	}

	logs, err := env.db.GetLogs(10)
	if err != nil {
		t.Fatalf("Failed to get logs: %v", err)
	}
	for _, entry := range logs {
		if entry.Outcome != models.OutcomeDryRun {
			t.Errorf("Expected dry_run outcome, got %s for %s", entry.Outcome, entry.ActionType)
		}
	}
}

func TestAttemptExhaustionLeavesFailureMarker(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}
	env.library.deleteErr = errors.New("server unreachable")

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	candidate, err := env.db.ActiveCandidateForItem(rule.ID, "m1")
	if err != nil {
		t.Fatalf("Expected candidate: %v", err)
	}

	// maxAttempts is 2 in the test env: two failing ticks exhaust the action.
	env.actCtrl.now = func() time.Time { return scanTime.AddDate(0, 0, 8) }
	for i := 0; i < 2; i++ {
		if err := env.actCtrl.RunDueActions(context.Background()); err != nil {
			t.Fatalf("Tick %d failed: %v", i, err)
		}
	}

	loaded, err := env.db.GetCandidate(candidate.ID)
	if err != nil {
		t.Fatalf("Failed to load candidate: %v", err)
	}
	if loaded.State != models.StateDue {
		t.Errorf("Expected candidate to remain due with failure marker, got %s", loaded.State)
	}
	pa := loaded.Actions[0]
	if pa.Attempts != 2 || !pa.Abandoned || pa.LastError == "" {
		t.Errorf("Expected exhausted action marker, got attempts=%d abandoned=%v err=%q",
			pa.Attempts, pa.Abandoned, pa.LastError)
	}

	// No further attempts once abandoned.
	if err := env.actCtrl.RunDueActions(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	reloaded, _ := env.db.GetCandidate(candidate.ID)
	if reloaded.Actions[0].Attempts != 2 {
		t.Errorf("Expected no retry after abandonment, attempts=%d", reloaded.Actions[0].Attempts)
	}
}

func seasonCandidate(rule *models.Rule, key string, number int) *models.Candidate {
	return &models.Candidate{
		RuleID:       rule.ID,
		ItemKey:      key,
		ItemType:     models.ItemTypeSeason,
		ItemTitle:    "Show - Season",
		ShowKey:      "show1",
		ShowTitle:    "Show",
		SeasonNumber: number,
		State:        models.StatePending,
		Actions: []models.PlannedAction{
			{Action: models.Action{Type: models.ActionDeleteViaSonarr}, ScheduledDate: scanTime},
		},
	}
}

func seasonRule() *models.Rule {
	return &models.Rule{
		Name:      "delete stale seasons",
		LibraryID: "2",
		Enabled:   true,
		Logic:     models.LogicAnd,
		Conditions: []models.Condition{
			{Field: "season.lastWatchedEpisodeDays", Operator: models.OpGreaterThan, Number: 60},
		},
		DelayedActions: []models.Action{
			{Type: models.ActionDeleteViaSonarr},
		},
	}
}

func TestPartialSeasonMatchDeletesSeasonOnly(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, seasonRule())
	env.library.seasons["show1"] = []models.LibraryItem{
		{Key: "s1", Type: models.ItemTypeSeason, ShowKey: "show1"},
		{Key: "s2", Type: models.ItemTypeSeason, ShowKey: "show1"},
		{Key: "s3", Type: models.ItemTypeSeason, ShowKey: "show1"},
	}
	env.sonarr.ids["Show"] = 7

	// Only two of three seasons hold candidates.
	for i, key := range []string{"s1", "s2"} {
		if err := env.db.InsertCandidate(seasonCandidate(rule, key, i+1)); err != nil {
			t.Fatalf("Failed to insert candidate: %v", err)
		}
	}

	env.actCtrl.now = func() time.Time { return scanTime.Add(time.Hour) }
	if err := env.actCtrl.RunDueActions(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if len(env.sonarr.deleted) != 0 {
		t.Errorf("Expected no series deletion on partial match, got %v", env.sonarr.deleted)
	}
	if len(env.library.deleted) != 2 {
		t.Errorf("Expected both matched seasons deleted individually, got %v", env.library.deleted)
	}
}

func TestFullSeasonCoverageDeletesSeries(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, seasonRule())
	env.library.seasons["show1"] = []models.LibraryItem{
		{Key: "s1", Type: models.ItemTypeSeason, ShowKey: "show1"},
		{Key: "s2", Type: models.ItemTypeSeason, ShowKey: "show1"},
	}
	env.sonarr.ids["Show"] = 7

	for i, key := range []string{"s1", "s2"} {
		if err := env.db.InsertCandidate(seasonCandidate(rule, key, i+1)); err != nil {
			t.Fatalf("Failed to insert candidate: %v", err)
		}
	}

	env.actCtrl.now = func() time.Time { return scanTime.Add(time.Hour) }
	if err := env.actCtrl.RunDueActions(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	found := false
	for _, id := range env.sonarr.deleted {
		if id == 7 {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected series deletion when every season qualifies, got %v", env.sonarr.deleted)
	}
}

func TestCancelCandidateManualOverride(t *testing.T) {
	env := newTestEnv(t)
	rule := env.createRule(t, oldMovieRule())
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	candidate, err := env.db.ActiveCandidateForItem(rule.ID, "m1")
	if err != nil {
		t.Fatalf("Expected candidate: %v", err)
	}

	if err := env.actCtrl.CancelCandidate(candidate.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	loaded, _ := env.db.GetCandidate(candidate.ID)
	if loaded.State != models.StateCancelled || loaded.CancelReason != "manual override" {
		t.Errorf("Expected manual cancellation, got %s / %q", loaded.State, loaded.CancelReason)
	}

	// Terminal candidates reject further overrides.
	if err := env.actCtrl.CancelCandidate(candidate.ID); !errors.Is(err, ErrCandidateTerminal) {
		t.Errorf("Expected ErrCandidateTerminal, got %v", err)
	}
}

func TestImmediateActionsRunOnMatch(t *testing.T) {
	env := newTestEnv(t)
	rule := oldMovieRule()
	rule.ImmediateActions = []models.Action{
		{Type: models.ActionAddToCollection, CollectionName: "Leaving Soon"},
		{Type: models.ActionSetTitleFormat, TitleFormat: "{title} (gone {deletion_date})"},
	}
	env.createRule(t, rule)
	env.library.items["1"] = []models.LibraryItem{oldMovie("m1", 120)}

	if _, err := env.scanCtrl.ScanRule(context.Background(), rule.ID); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(env.library.added) != 1 || env.library.added[0] != "m1:Leaving Soon" {
		t.Errorf("Expected collection add, got %v", env.library.added)
	}
	wantTitle := "Old Movie m1 (gone " + scanTime.AddDate(0, 0, 7).Format("2006-01-02") + ")"
	if env.library.titlesSet["m1"] != wantTitle {
		t.Errorf("Expected title %q, got %q", wantTitle, env.library.titlesSet["m1"])
	}
}

func TestExpandTitleFormat(t *testing.T) {
	delayed := []models.Action{{Type: models.ActionDeleteViaRadarr, DelayDays: 10}}
	got := expandTitleFormat("{title} leaves {deletion_date_readable}", "My Movie", delayed, scanTime)
	want := "My Movie leaves " + scanTime.AddDate(0, 0, 10).Format("January 2, 2006")
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	// Without delayed actions the date variables stay untouched.
	got = expandTitleFormat("{title} {deletion_date}", "My Movie", nil, scanTime)
	if got != "My Movie {deletion_date}" {
		t.Errorf("Expected date variable untouched, got %q", got)
	}
}
