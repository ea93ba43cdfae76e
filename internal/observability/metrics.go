// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsReceived     *prometheus.CounterVec
	EventsAccepted     *prometheus.CounterVec
	EventsDeduplicated *prometheus.CounterVec
	EventsRejected     *prometheus.CounterVec
	WebhookLatency     prometheus.Histogram

	// Inference metrics
	CancelsInferred   prometheus.Counter
	CancelsConfirmed  prometheus.Counter
	InferenceSkipped  prometheus.Counter
	InferenceDuration prometheus.Histogram

	// Backfill metrics
	ExcursionsComputed prometheus.Counter
	ExcursionsSkipped  *prometheus.CounterVec
	BackfillDuration   prometheus.Histogram
	BarsReplayed       prometheus.Counter

	// Corpus metrics
	GateEvaluations *prometheus.CounterVec
	RunsBuilt       *prometheus.CounterVec
	SnapshotRows    prometheus.Counter

	// Coverage metrics
	ActiveTrades   prometheus.Gauge
	OrphanedTrades prometheus.Gauge
	CoverageHealth *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulBackfill  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trade_signal_lab"
	}

	return &Metrics{
		// Ingestion metrics
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_received_total",
			Help:      "Total number of raw events received by source",
		}, []string{"source"}),
		EventsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_accepted_total",
			Help:      "Total number of events appended to the event log",
		}, []string{"event_type"}),
		EventsDeduplicated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_deduplicated_total",
			Help:      "Total number of retransmits absorbed by the dedup key",
		}, []string{"event_type"}),
		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_rejected_total",
			Help:      "Total number of events rejected by reason",
		}, []string{"reason"}),
		WebhookLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "webhook_latency_seconds",
			Help:      "Webhook request handling latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Inference metrics
		CancelsInferred: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "cancels_inferred_total",
			Help:      "Total number of synthetic CANCELLED events inserted",
		}),
		CancelsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "cancels_blocked_by_entry_total",
			Help:      "Total number of inferred cancels blocked by a confirmed ENTRY",
		}),
		InferenceSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "rows_skipped_total",
			Help:      "Total number of signal rows skipped as unusable",
		}),
		InferenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inference",
			Name:      "sweep_duration_seconds",
			Help:      "Cancellation inference sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		// Backfill metrics
		ExcursionsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "excursions_computed_total",
			Help:      "Total number of excursion results computed",
		}),
		ExcursionsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "excursions_skipped_total",
			Help:      "Total number of trades skipped by reason",
		}, []string{"reason"}),
		BackfillDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "run_duration_seconds",
			Help:      "Backfill run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		BarsReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "bars_replayed_total",
			Help:      "Total number of bars replayed across excursion windows",
		}),

		// Corpus metrics
		GateEvaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "corpus",
			Name:      "gate_evaluations_total",
			Help:      "Total number of quality gate evaluations by gate and outcome",
		}, []string{"gate", "outcome"}),
		RunsBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "corpus",
			Name:      "runs_built_total",
			Help:      "Total number of corpus run builds by final status",
		}, []string{"status"}),
		SnapshotRows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "corpus",
			Name:      "snapshot_rows_total",
			Help:      "Total number of snapshot rows materialized",
		}),

		// Coverage metrics
		ActiveTrades: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coverage",
			Name:      "active_trades",
			Help:      "Number of trades currently ACTIVE",
		}),
		OrphanedTrades: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coverage",
			Name:      "orphaned_trades",
			Help:      "Number of ACTIVE trades with no live metric updates",
		}),
		CoverageHealth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coverage",
			Name:      "health_status",
			Help:      "Coverage health as a one-hot gauge by level",
		}, []string{"level"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful event append",
		}),
		LastSuccessfulBackfill: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backfill_timestamp",
			Help:      "Unix timestamp of last successful backfill run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetCoverageHealth sets the one-hot health gauge for the given level.
func (m *Metrics) SetCoverageHealth(level string) {
	for _, l := range []string{"excellent", "good", "fair", "poor"} {
		v := 0.0
		if l == level {
			v = 1.0
		}
		m.CoverageHealth.WithLabelValues(l).Set(v)
	}
}
