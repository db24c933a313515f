// Package metrics provides Prometheus metrics for the permit portal.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WizardTransitionsTotal tracks Next/Back/JumpTo calls by outcome
	WizardTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bpls",
			Subsystem: "wizard",
			Name:      "transitions_total",
			Help:      "Total number of wizard step transitions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// ValidationFailuresTotal tracks checklist failures per step
	ValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bpls",
			Subsystem: "wizard",
			Name:      "validation_failures_total",
			Help:      "Total number of required-field validation failures by step",
		},
		[]string{"step"},
	)

	// AutosaveSavesTotal tracks entity saves by trigger and outcome
	AutosaveSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bpls",
			Subsystem: "autosave",
			Name:      "saves_total",
			Help:      "Total number of entity saves by entity, trigger and outcome",
		},
		[]string{"entity", "trigger", "outcome"},
	)

	// SaveDuration tracks how long an entity save takes, lock wait included
	SaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bpls",
			Subsystem: "autosave",
			Name:      "save_duration_seconds",
			Help:      "Duration of entity saves in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"entity"},
	)

	// SubmissionsTotal tracks final submission checks by outcome
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bpls",
			Subsystem: "application",
			Name:      "submissions_total",
			Help:      "Total number of submission attempts by outcome",
		},
		[]string{"outcome"},
	)

	// StatusChangesTotal tracks applied status transitions
	StatusChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bpls",
			Subsystem: "application",
			Name:      "status_changes_total",
			Help:      "Total number of application status changes",
		},
		[]string{"from", "to"},
	)

	// EventPublishFailuresTotal tracks status events that could not be published
	EventPublishFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bpls",
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Total number of status events that failed to publish",
		},
	)

	// LoginAttemptsTotal tracks sign-in attempts by outcome
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bpls",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of sign-in attempts by outcome",
		},
		[]string{"outcome"},
	)
)
