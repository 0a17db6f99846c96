package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "throttle"

// Metrics manages the Prometheus metrics.
type Metrics struct {
	RateLimitDecisions *prometheus.CounterVec
	SweepRemovals      *prometheus.CounterVec
	SweepDuration      *prometheus.HistogramVec
	TrackedKeys        *prometheus.GaugeVec
	HTTPRequests       *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RateLimitDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_decisions_total",
				Help:      "Total number of rate limit checks by limiter and outcome.",
			},
			[]string{"limiter", "outcome"},
		),
		SweepRemovals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_swept_keys_total",
				Help:      "Total number of expired keys removed by the sweeper.",
			},
			[]string{"limiter"},
		),
		SweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_limit_sweep_duration_seconds",
				Help:      "Duration of sweeper passes.",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"limiter"},
		),
		TrackedKeys: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rate_limit_tracked_keys",
				Help:      "Number of keys held by in-memory stores after the last sweep.",
			},
			[]string{"limiter"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// RecordDecision implements service.RateLimitMetrics.
func (m *Metrics) RecordDecision(limiter, outcome string) {
	m.RateLimitDecisions.WithLabelValues(limiter, outcome).Inc()
}

// RecordSweep implements service.RateLimitMetrics.
func (m *Metrics) RecordSweep(limiter string, removed, tracked int, duration time.Duration) {
	m.SweepRemovals.WithLabelValues(limiter).Add(float64(removed))
	m.SweepDuration.WithLabelValues(limiter).Observe(duration.Seconds())
	m.TrackedKeys.WithLabelValues(limiter).Set(float64(tracked))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}
