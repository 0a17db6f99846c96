package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/throttle/internal/domain/models"
)

// MockWindowStore is a mock implementation of service.WindowStore
type MockWindowStore struct {
	mock.Mock
}

func (m *MockWindowStore) Hit(ctx context.Context, key string, now time.Time, limit int) (models.WindowState, error) {
	args := m.Called(ctx, key, now, limit)
	return args.Get(0).(models.WindowState), args.Error(1)
}

func (m *MockWindowStore) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockWindowStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockRateLimitMetrics is a mock implementation of service.RateLimitMetrics
type MockRateLimitMetrics struct {
	mock.Mock
}

func (m *MockRateLimitMetrics) RecordDecision(limiter, outcome string) {
	m.Called(limiter, outcome)
}

func (m *MockRateLimitMetrics) RecordSweep(limiter string, removed, tracked int, duration time.Duration) {
	m.Called(limiter, removed, tracked, duration)
}
