// Package ratelimit provides sliding-window rate limiting with in-memory and Redis stores.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/internal/domain/service"
	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/errors"
	"github.com/turtacn/throttle/pkg/logger"
)

// SlidingWindowLimiter enforces one RateLimitRule against a WindowStore.
type SlidingWindowLimiter struct {
	rule    models.RateLimitRule
	store   service.WindowStore
	trusted map[string]struct{}
	clock   func() time.Time
	logger  logger.Logger
	metrics service.RateLimitMetrics
	tracer  trace.Tracer
}

// Option configures a SlidingWindowLimiter.
type Option func(*SlidingWindowLimiter)

// WithClock sets the time source. Tests use it to drive the window deterministically.
func WithClock(clock func() time.Time) Option {
	return func(l *SlidingWindowLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithTrustedSources replaces the default allow-list of addresses that bypass limiting.
func WithTrustedSources(addresses []string) Option {
	return func(l *SlidingWindowLimiter) {
		l.trusted = trustedSet(addresses)
	}
}

// WithMetrics sets the decision recorder.
func WithMetrics(m service.RateLimitMetrics) Option {
	return func(l *SlidingWindowLimiter) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithTracer sets the tracer used for the ratelimit.check span.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *SlidingWindowLimiter) {
		if tracer != nil {
			l.tracer = tracer
		}
	}
}

// NewSlidingWindowLimiter creates a limiter for rule backed by store.
func NewSlidingWindowLimiter(rule models.RateLimitRule, store service.WindowStore, log logger.Logger, opts ...Option) (*SlidingWindowLimiter, error) {
	if err := rule.Validate(); err != nil {
		return nil, errors.ErrInvalidConfig.WithCause(err)
	}
	if store == nil {
		return nil, errors.ErrInvalidConfig.WithMessage("rate limiter %q requires a store", rule.Name)
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	l := &SlidingWindowLimiter{
		rule:    rule,
		store:   store,
		trusted: trustedSet(constants.DefaultTrustedSources),
		clock:   time.Now,
		logger:  log.WithComponent("ratelimit").WithFields(logger.String("limiter", rule.Name)),
		metrics: service.NoopMetrics{},
		tracer:  noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Rule returns the configuration the limiter enforces.
func (l *SlidingWindowLimiter) Rule() models.RateLimitRule {
	return l.rule
}

// Check derives the key for subject and checks it. Trusted sources are matched
// against the peer address, never against forwarded headers, and are admitted
// without consulting the store.
func (l *SlidingWindowLimiter) Check(ctx context.Context, subject models.Subject) (string, models.RateLimitResult) {
	key := l.rule.KeyStrategy.Key(subject)
	peer := subject.Peer
	if peer == "" {
		peer = subject.Address
	}
	return key, l.decide(ctx, key, l.isTrusted(peer))
}

// CheckLimit checks and, when admitted, records one request for key. A key
// naming a trusted source is admitted without consulting the store.
func (l *SlidingWindowLimiter) CheckLimit(ctx context.Context, key string) models.RateLimitResult {
	return l.decide(ctx, key, l.isTrusted(key))
}

func (l *SlidingWindowLimiter) decide(ctx context.Context, key string, trusted bool) models.RateLimitResult {
	ctx, span := l.tracer.Start(ctx, "ratelimit.check", trace.WithAttributes(
		attribute.String("ratelimit.limiter", l.rule.Name),
	))
	defer span.End()

	now := l.clock()
	if trusted {
		l.metrics.RecordDecision(l.rule.Name, service.OutcomeTrusted)
		span.SetAttributes(attribute.String("ratelimit.outcome", service.OutcomeTrusted))
		return l.generous(now)
	}

	result, err := l.checkLimit(ctx, key, now)
	if err != nil {
		return l.failOpen(ctx, key, now, err)
	}

	span.SetAttributes(
		attribute.Bool("ratelimit.allowed", result.Allowed),
		attribute.Int("ratelimit.remaining", result.Remaining),
	)

	if result.Allowed {
		l.metrics.RecordDecision(l.rule.Name, service.OutcomeAllowed)
	} else {
		l.metrics.RecordDecision(l.rule.Name, service.OutcomeRejected)
		l.logger.Debug(ctx, "Rate limit exceeded",
			logger.String("key", key),
			logger.Int("limit", result.Limit),
		)
	}
	return result
}

// Reset clears the window of key.
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Reset(ctx, key); err != nil {
		return err
	}
	l.logger.Info(ctx, "Rate limit reset", logger.String("key", key))
	return nil
}

// Close stops the store's background work.
func (l *SlidingWindowLimiter) Close() error {
	return l.store.Close()
}

func (l *SlidingWindowLimiter) checkLimit(ctx context.Context, key string, now time.Time) (models.RateLimitResult, error) {
	if err := ctx.Err(); err != nil {
		return models.RateLimitResult{}, errors.Internal(err, "context")
	}

	state, err := l.store.Hit(ctx, key, now, l.rule.MaxRequests)
	if err != nil {
		return models.RateLimitResult{}, err
	}

	used := state.Count
	if state.Admitted {
		used++
	}
	remaining := l.rule.MaxRequests - used
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(l.rule.Window)
	if !state.Oldest.IsZero() {
		resetAt = state.Oldest.Add(l.rule.Window)
	}

	return models.RateLimitResult{
		Allowed:   state.Admitted,
		Remaining: remaining,
		Limit:     l.rule.MaxRequests,
		ResetAt:   resetAt,
	}, nil
}

// failOpen admits the request when bookkeeping fails. Only limiter-internal
// faults are the expected path; anything else is logged louder.
func (l *SlidingWindowLimiter) failOpen(ctx context.Context, key string, now time.Time, err error) models.RateLimitResult {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, "rate limiter failed open")

	if errors.IsLimiterInternal(err) {
		l.metrics.RecordDecision(l.rule.Name, service.OutcomeFailOpen)
		span.SetAttributes(attribute.String("ratelimit.outcome", service.OutcomeFailOpen))
		l.logger.Warn(ctx, "Rate limiter failed, admitting request",
			logger.String("key", key),
			logger.String("error", err.Error()),
		)
	} else {
		l.metrics.RecordDecision(l.rule.Name, service.OutcomeError)
		span.SetAttributes(attribute.String("ratelimit.outcome", service.OutcomeError))
		l.logger.Error(ctx, "Rate limiter returned an unexpected error, admitting request", err,
			logger.String("key", key),
		)
	}
	return l.generous(now)
}

func (l *SlidingWindowLimiter) generous(now time.Time) models.RateLimitResult {
	return models.RateLimitResult{
		Allowed:   true,
		Remaining: constants.GenerousRemaining,
		Limit:     constants.GenerousLimit,
		ResetAt:   now.Add(l.rule.Window),
	}
}

func (l *SlidingWindowLimiter) isTrusted(value string) bool {
	_, ok := l.trusted[value]
	return ok
}

// trustedSet accepts both bare addresses and their "ip:" keyed form.
func trustedSet(addresses []string) map[string]struct{} {
	set := make(map[string]struct{}, len(addresses)*2)
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		set[addr] = struct{}{}
		set["ip:"+addr] = struct{}{}
	}
	return set
}
