// Package instrument reúne os coletores Prometheus do próprio serviço.
package instrument

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reacher"

var (
	CheckResultsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_results_ingested_total",
			Help:      "Check results accepted by the ingest pipeline, by result kind",
		},
		[]string{"kind"},
	)

	CriteriaMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "criteria_evaluations_total",
			Help:      "Step evaluations by outcome (matched, default, none)",
		},
		[]string{"outcome"},
	)

	SandboxFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expression_sandbox_failures_total",
			Help:      "Expression filters degraded to not met, by reason",
		},
		[]string{"reason"},
	)

	TimelineWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_writes_total",
			Help:      "Timeline insert/delete operations by owner kind and result",
		},
		[]string{"op", "owner_kind", "result"},
	)

	IncidentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_created_total",
			Help:      "Incidents created automatically from criteria matches",
		},
	)

	IncidentsAutoResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_auto_resolved_total",
			Help:      "Incidents resolved by the auto-resolve pass",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "escalation_sweep_duration_seconds",
			Help:      "Wall time of one escalation sweep",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	ExecutionLogOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_log_outcomes_total",
			Help:      "Per-log sweep outcomes (waiting, advanced, repeated, completed, error, skipped)",
		},
		[]string{"outcome"},
	)

	OutboundTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_tasks_total",
			Help:      "Outbound queue tasks by name and result (ok, failed, dropped)",
		},
		[]string{"task", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)
)
