package service

import "time"

// Decision outcomes reported to RateLimitMetrics.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
	OutcomeTrusted  = "trusted"
	OutcomeFailOpen = "fail_open"
	OutcomeError    = "error"
)

// RateLimitMetrics defines the interface for collecting rate limiting metrics.
// This abstraction keeps the limiter independent of the monitoring implementation (e.g., Prometheus).
type RateLimitMetrics interface {
	// RecordDecision counts one check of limiter with the given outcome.
	RecordDecision(limiter, outcome string)

	// RecordSweep records one sweep pass of an in-memory store.
	RecordSweep(limiter string, removed, tracked int, duration time.Duration)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

// RecordDecision implements RateLimitMetrics.
func (NoopMetrics) RecordDecision(string, string) {}

// RecordSweep implements RateLimitMetrics.
func (NoopMetrics) RecordSweep(string, int, int, time.Duration) {}
