// Package metrics exposes Prometheus instrumentation for classification, batch
// reclassification, hint providers, the encoder, and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Classification
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocat_classifications_total",
			Help: "Total number of single-item classifications by outcome",
		},
		[]string{"outcome"}, // "assigned", "uncategorized", "locked", "no_embedding", "no_prototypes"
	)

	ClassificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autocat_classification_duration_seconds",
			Help:    "Duration of single-item classification including prototype build",
			Buckets: prometheus.DefBuckets,
		},
	)

	BoostsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocat_boosts_applied_total",
			Help: "Total number of boost stages that fired",
		},
		[]string{"stage"}, // "text", "face"
	)

	PrototypeBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autocat_prototype_build_duration_seconds",
			Help:    "Duration of prototype set construction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	PrototypeCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autocat_prototypes",
			Help: "Number of usable category prototypes in the last built set",
		},
	)

	// Batch reclassification
	ReclassifyRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocat_reclassify_runs_total",
			Help: "Total number of batch reclassification runs",
		},
		[]string{"dry_run", "status"},
	)

	ReclassifyItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocat_reclassify_items_total",
			Help: "Items processed by batch reclassification",
		},
		[]string{"result"}, // "scanned", "would_update", "applied", "locked_kept", "missing_embedding"
	)

	ReclassifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autocat_reclassify_duration_seconds",
			Help:    "Duration of batch reclassification runs",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	// Hint providers
	HintEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocat_hint_evaluations_total",
			Help: "Total number of hint evaluations by hint and result",
		},
		[]string{"hint", "result"}, // result: "present", "absent", "error"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autocat_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocat_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Encoder
	EncoderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocat_encoder_requests_total",
			Help: "Total number of encoder calls by kind and result",
		},
		[]string{"kind", "result"}, // kind: "image", "text"
	)

	EncoderCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autocat_encoder_cache_hits_total",
			Help: "Total number of text embedding cache hits",
		},
	)

	EncoderCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autocat_encoder_cache_misses_total",
			Help: "Total number of text embedding cache misses",
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocat_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autocat_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocat_config_reloads_total",
			Help: "Total number of configuration reloads",
		},
		[]string{"result"},
	)
)

// RecordClassification records one single-item classification.
func RecordClassification(outcome string, duration time.Duration) {
	ClassificationsTotal.WithLabelValues(outcome).Inc()
	ClassificationDuration.Observe(duration.Seconds())
}

// RecordPrototypeBuild records a prototype build and the resulting set size.
func RecordPrototypeBuild(prototypes int, duration time.Duration) {
	PrototypeBuildDuration.Observe(duration.Seconds())
	PrototypeCount.Set(float64(prototypes))
}

// RecordReclassify records a finished batch run.
func RecordReclassify(dryRun bool, status string, scanned, wouldUpdate, applied, lockedKept, missing int, duration time.Duration) {
	ReclassifyRuns.WithLabelValues(strconv.FormatBool(dryRun), status).Inc()
	ReclassifyItems.WithLabelValues("scanned").Add(float64(scanned))
	ReclassifyItems.WithLabelValues("would_update").Add(float64(wouldUpdate))
	ReclassifyItems.WithLabelValues("applied").Add(float64(applied))
	ReclassifyItems.WithLabelValues("locked_kept").Add(float64(lockedKept))
	ReclassifyItems.WithLabelValues("missing_embedding").Add(float64(missing))
	ReclassifyDuration.Observe(duration.Seconds())
}

// RecordHint records one hint evaluation.
func RecordHint(hint string, present bool, err error) {
	result := "absent"
	switch {
	case err != nil:
		result = "error"
	case present:
		result = "present"
	}
	HintEvaluations.WithLabelValues(hint, result).Inc()
}

// RecordEncoder records one encoder call.
func RecordEncoder(kind string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	EncoderRequests.WithLabelValues(kind, result).Inc()
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordConfigReload records a configuration reload attempt.
func RecordConfigReload(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ConfigReloads.WithLabelValues(result).Inc()
}
