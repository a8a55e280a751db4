// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline. One instance is
// created at startup and handed to every stage.
type Metrics struct {
	// Source metrics
	ObservationsIngested *prometheus.CounterVec
	SourceErrors         *prometheus.CounterVec

	// Aggregator metrics
	PoolsTracked      prometheus.Gauge
	PoolsCreated      prometheus.Counter
	MaterialUpdates   prometheus.Counter
	PoolEventsDropped prometheus.Counter

	// Risk metrics
	AssessmentsTotal  *prometheus.CounterVec
	OracleCalls       *prometheus.CounterVec
	AssessmentLatency prometheus.Histogram

	// Admission metrics
	DecisionsTotal *prometheus.CounterVec

	// Dispatch metrics
	TradesTotal    *prometheus.CounterVec
	SubmitAttempts prometheus.Counter
	TradeDuration  prometheus.Histogram

	// Broadcast metrics
	EventsPublished  prometheus.Counter
	EventsDropped    prometheus.Counter
	SubscribersGauge prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all metrics registered on the
// default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dex_sniper"
	}

	return &Metrics{
		ObservationsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "observations_ingested_total",
			Help:      "Total number of pool observations ingested per source",
		}, []string{"source"}),
		SourceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "errors_total",
			Help:      "Total number of source failures per source",
		}, []string{"source"}),
		PoolsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "pools_tracked",
			Help:      "Number of canonical pools currently tracked",
		}),
		PoolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "pools_created_total",
			Help:      "Total number of new canonical pools",
		}),
		MaterialUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "material_updates_total",
			Help:      "Total number of material pool updates",
		}),
		PoolEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "events_dropped_total",
			Help:      "Total number of pool events dropped from the event queue",
		}),

		AssessmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessments_total",
			Help:      "Total number of risk assessments per level",
		}, []string{"level"}),
		OracleCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "oracle_calls_total",
			Help:      "Total number of security oracle consultations per outcome",
		}, []string{"outcome"}),
		AssessmentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "assessment_latency_seconds",
			Help:      "Risk assessment latency including oracle consultation",
			Buckets:   prometheus.DefBuckets,
		}),

		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Total number of admission decisions per outcome",
		}, []string{"outcome"}),
		TradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "trades_total",
			Help:      "Total number of terminal trades per status",
		}, []string{"status"}),
		SubmitAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "submit_attempts_total",
			Help:      "Total number of transaction submission attempts",
		}),
		TradeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "trade_duration_seconds",
			Help:      "Time from trade creation to a terminal state",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
		}),

		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_published_total",
			Help:      "Total number of events published to topic rooms",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped by slow subscribers",
		}),
		SubscribersGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "subscribers",
			Help:      "Current number of realtime subscribers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
