package ratelimit

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/internal/domain/service"
	"github.com/turtacn/throttle/pkg/errors"
	"github.com/turtacn/throttle/pkg/logger"
)

// StoreFactory builds the store of one named rule.
type StoreFactory func(rule models.RateLimitRule) (service.WindowStore, error)

// MemoryStoreFactory returns a factory of in-memory stores sharing the given options.
func MemoryStoreFactory(opts ...MemoryStoreOption) StoreFactory {
	return func(rule models.RateLimitRule) (service.WindowStore, error) {
		return NewMemoryStore(rule.Name, rule.Window, opts...), nil
	}
}

// RedisStoreFactory returns a factory of Redis stores sharing client.
func RedisStoreFactory(client redis.UniversalClient) StoreFactory {
	return func(rule models.RateLimitRule) (service.WindowStore, error) {
		return NewRedisStore(client, rule.Name, rule.Window)
	}
}

// Registry owns one limiter and one store per named rule.
type Registry struct {
	limiters map[string]*SlidingWindowLimiter
	logger   logger.Logger
}

// NewRegistry builds a limiter for every rule. Names must be unique.
func NewRegistry(rules []models.RateLimitRule, factory StoreFactory, log logger.Logger, opts ...Option) (*Registry, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	r := &Registry{
		limiters: make(map[string]*SlidingWindowLimiter, len(rules)),
		logger:   log.WithComponent("ratelimit_registry"),
	}

	for _, rule := range rules {
		if _, exists := r.limiters[rule.Name]; exists {
			r.Close()
			return nil, errors.ErrInvalidConfig.WithMessage("duplicate rate limiter %q", rule.Name)
		}

		store, err := factory(rule)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("create store for %q: %w", rule.Name, err)
		}

		limiter, err := NewSlidingWindowLimiter(rule, store, log, opts...)
		if err != nil {
			_ = store.Close()
			r.Close()
			return nil, err
		}
		r.limiters[rule.Name] = limiter
	}

	r.logger.Info(context.Background(), "Rate limiters initialized", logger.Fields{"limiters": r.Names()})
	return r, nil
}

// Get returns the limiter registered under name.
func (r *Registry) Get(name string) (*SlidingWindowLimiter, error) {
	limiter, ok := r.limiters[name]
	if !ok {
		return nil, errors.ErrUnknownLimiter.WithMessage("unknown rate limiter %q", name)
	}
	return limiter, nil
}

// MustGet is like Get but panics for unknown names. It is meant for route wiring,
// where a missing limiter is a programming error.
func (r *Registry) MustGet(name string) *SlidingWindowLimiter {
	limiter, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return limiter
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules returns the registered rules sorted by name.
func (r *Registry) Rules() []models.RateLimitRule {
	names := r.Names()
	rules := make([]models.RateLimitRule, 0, len(names))
	for _, name := range names {
		rules = append(rules, r.limiters[name].Rule())
	}
	return rules
}

// Close stops every store. Errors are logged; the first one is returned.
func (r *Registry) Close() error {
	var first error
	for name, limiter := range r.limiters {
		if err := limiter.Close(); err != nil {
			r.logger.Error(context.Background(), "Failed to close rate limiter store", err, logger.String("limiter", name))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

