package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skillroute"

var (
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of routed queries by top result source",
		},
		[]string{"source"},
	)

	searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Query routing duration in seconds",
			Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	tracesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traces_recorded_total",
			Help:      "Total number of trace files written",
		},
	)

	mergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Total number of dataset merges by outcome",
		},
		[]string{"outcome"},
	)

	mergeFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_files_total",
			Help:      "Trace files handled by merges, by result",
		},
		[]string{"result"},
	)

	sprtDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sprt_decisions_total",
			Help:      "Total number of SPRT evaluations by decision",
		},
		[]string{"decision"},
	)
)

var (
	registry     = prometheus.NewRegistry()
	registerOnce sync.Once
)

// Register adds all collectors plus Go runtime collectors to the package
// registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		registry.MustRegister(
			searchesTotal, searchDuration, tracesRecorded,
			mergesTotal, mergeFiles, sprtDecisions,
			httpRequestDuration, httpRequestsTotal,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the package registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one routed query.
func ObserveSearch(source string, d time.Duration) {
	if source == "" {
		source = "none"
	}
	searchesTotal.WithLabelValues(source).Inc()
	searchDuration.Observe(d.Seconds())
}

// TraceRecorded counts one written trace file.
func TraceRecorded() {
	tracesRecorded.Inc()
}

// ObserveMerge records a merge outcome ("ok", "noop", "failed", "busy") and
// its per-file counts.
func ObserveMerge(outcome string, applied, quarantined int) {
	mergesTotal.WithLabelValues(outcome).Inc()
	mergeFiles.WithLabelValues("applied").Add(float64(applied))
	mergeFiles.WithLabelValues("quarantined").Add(float64(quarantined))
}

// ObserveSPRT records one SPRT decision.
func ObserveSPRT(decision string) {
	sprtDecisions.WithLabelValues(decision).Inc()
}
