// Package metrics defines and registers the Prometheus metrics named in
// SPEC_FULL.md §3/§10: worker counts by status/health, breaker state,
// correction-loop iterations, API request volume, and sweep effects.
// Grounded on pkg/metrics/metrics.go's package-level var block plus
// init()-time MustRegister idiom, renamed from cluster/raft/deployment
// metrics to worker/breaker/correction metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strategos_workers_total",
			Help: "Total number of workers by status",
		},
		[]string{"status"},
	)

	WorkersByHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strategos_workers_by_health",
			Help: "Total number of running workers by health state",
		},
		[]string{"health"},
	)

	// Circuit breaker metrics
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strategos_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategos_breaker_trips_total",
			Help: "Total number of times a breaker transitioned to open",
		},
		[]string{"name"},
	)

	// Correction loop metrics
	CorrectionSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategos_correction_sessions_total",
			Help: "Total number of correction sessions by task type and stop reason",
		},
		[]string{"task_type", "stop_reason"},
	)

	CorrectionIterations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strategos_correction_iterations",
			Help:    "Number of iterations a correction session ran before stopping",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"task_type"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strategos_api_requests_total",
			Help: "Total number of API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strategos_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Sweep / rehydration metrics
	SweepReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strategos_sweep_reaped_total",
			Help: "Total number of terminal worker records reaped past the retention window",
		},
	)

	SweepPromotedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strategos_sweep_promoted_total",
			Help: "Total number of pending workers promoted to running by dependency activation",
		},
	)

	SessionsDiscoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strategos_sessions_discovered_total",
			Help: "Total number of host sessions discovered that were not present in the last snapshot",
		},
	)
)

func init() {
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(WorkersByHealth)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(BreakerTripsTotal)
	prometheus.MustRegister(CorrectionSessionsTotal)
	prometheus.MustRegister(CorrectionIterations)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(SweepReapedTotal)
	prometheus.MustRegister(SweepPromotedTotal)
	prometheus.MustRegister(SessionsDiscoveredTotal)
}

// BreakerStateValue maps a breaker state name to the gauge value
// documented in BreakerState's Help string.
func BreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
