// Package metrics exposes Prometheus collectors for scans, action
// outcomes, and the candidate backlog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts completed rule scans
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeparr_scans_total",
		Help: "Completed rule scans by result.",
	}, []string{"result"})

	// CandidatesCreated counts candidates created by scans
	CandidatesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeparr_candidates_created_total",
		Help: "Candidates created by scans.",
	})

	// CandidatesCancelled counts candidates cancelled by scans or callers
	CandidatesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeparr_candidates_cancelled_total",
		Help: "Candidates cancelled by unmatch, rewatch, or manual override.",
	})

	// ActionsTotal counts action executions by outcome
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweeparr_actions_total",
		Help: "Action executions by outcome.",
	}, []string{"outcome"})

	// ActiveCandidates tracks the current candidate backlog
	ActiveCandidates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sweeparr_active_candidates",
		Help: "Candidates currently awaiting delayed actions.",
	})
)
