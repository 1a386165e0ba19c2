package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/sweeparr/internal/controllers"
)

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	scanCtrl *controllers.ScanController
	actCtrl  *controllers.ActionController
	scanCron string
	tickCron string
	logger   *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(
	scanCtrl *controllers.ScanController,
	actCtrl *controllers.ActionController,
	scanCron string,
	tickCron string,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		scanCtrl: scanCtrl,
		actCtrl:  actCtrl,
		scanCron: scanCron,
		tickCron: tickCron,
		logger:   logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	_, err := s.cron.AddFunc(s.scanCron, func() {
		s.runScan()
	})
	if err != nil {
		return fmt.Errorf("failed to add scan job: %w", err)
	}

	_, err = s.cron.AddFunc(s.tickCron, func() {
		s.runTick()
	})
	if err != nil {
		return fmt.Errorf("failed to add tick job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Run an initial scan immediately so a fresh deployment does not wait
	// for the first cron window.
	go func() {
		s.runScan()
		s.runTick()
	}()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// runScan evaluates all enabled rules against fresh library snapshots
func (s *Scheduler) runScan() {
	s.logger.Info("Running scheduled scan")
	ctx := context.Background()

	summaries, err := s.scanCtrl.ScanAll(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Scan job failed")
		return
	}

	created, cancelled := 0, 0
	for _, summary := range summaries {
		created += summary.CandidatesCreated
		cancelled += summary.CandidatesCancelled
	}
	s.logger.WithFields(logrus.Fields{
		"rules":     len(summaries),
		"created":   created,
		"cancelled": cancelled,
	}).Info("Scan job completed")
}

// runTick executes all delayed actions that have come due
func (s *Scheduler) runTick() {
	s.logger.Info("Running scheduled action tick")
	ctx := context.Background()

	if err := s.actCtrl.RunDueActions(ctx); err != nil {
		s.logger.WithError(err).Error("Action tick failed")
	} else {
		s.logger.Info("Action tick completed")
	}
}
