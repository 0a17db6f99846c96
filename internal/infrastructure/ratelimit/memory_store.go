package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/internal/domain/service"
	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/logger"
)

// MemoryStore keeps timestamp records in process memory. One mutex guards the
// whole map so concurrent hits on a key never lose updates.
type MemoryStore struct {
	name   string
	window time.Duration

	mu      sync.Mutex
	entries map[string][]time.Time

	interval time.Duration
	clock    func() time.Time
	logger   logger.Logger
	metrics  service.RateLimitMetrics

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithSweepInterval sets how often expired keys are removed. Zero disables the sweeper.
func WithSweepInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.interval = interval
	}
}

// WithSweepClock sets the time source of the sweeper.
func WithSweepClock(clock func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithStoreLogger sets the store logger.
func WithStoreLogger(log logger.Logger) MemoryStoreOption {
	return func(s *MemoryStore) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithStoreMetrics sets the sweep recorder.
func WithStoreMetrics(m service.RateLimitMetrics) MemoryStoreOption {
	return func(s *MemoryStore) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewMemoryStore creates a store for the limiter name with the given window and
// starts its sweeper.
func NewMemoryStore(name string, window time.Duration, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		name:     name,
		window:   window,
		entries:  make(map[string][]time.Time),
		interval: constants.DefaultSweepInterval,
		clock:    time.Now,
		logger:   logger.NewNoopLogger(),
		metrics:  service.NoopMetrics{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("memory_store").WithFields(logger.String("limiter", name))

	if s.interval > 0 {
		go s.run()
	} else {
		close(s.done)
	}
	return s
}

// Hit implements service.WindowStore.
func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, limit int) (models.WindowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamps := prune(s.entries[key], now.Add(-s.window))
	state := models.WindowState{Count: len(timestamps)}

	if state.Count < limit {
		timestamps = append(timestamps, now)
		state.Admitted = true
	}

	if len(timestamps) == 0 {
		delete(s.entries, key)
		return state, nil
	}
	s.entries[key] = timestamps
	state.Oldest = timestamps[0]
	return state, nil
}

// Reset implements service.WindowStore.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep removes every key whose newest timestamp is at or before now minus the
// window and returns how many keys were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	start := time.Now()
	cutoff := now.Add(-s.window)

	s.mu.Lock()
	removed := 0
	for key, timestamps := range s.entries {
		if len(timestamps) == 0 || !timestamps[len(timestamps)-1].After(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	tracked := len(s.entries)
	s.mu.Unlock()

	s.metrics.RecordSweep(s.name, removed, tracked, time.Since(start))
	if removed > 0 {
		s.logger.Debug(context.Background(), "Swept expired rate limit keys",
			logger.Int("removed", removed),
			logger.Int("tracked", tracked),
		)
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper and waits for it to exit.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *MemoryStore) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(s.clock())
		case <-s.stop:
			return
		}
	}
}

// prune drops the leading timestamps at or before cutoff. Timestamps are
// appended in non-decreasing order so a binary search finds the first survivor.
func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(timestamps), func(i int) bool {
		return timestamps[i].After(cutoff)
	})
	return timestamps[i:]
}
