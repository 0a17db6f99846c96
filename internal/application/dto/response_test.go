package dto

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/pkg/errors"
)

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(errors.ErrUnknownLimiter.WithMessage("unknown rate limiter %q", "x"))
	assert.Equal(t, "unknown_limiter", resp.Error)
	assert.Equal(t, `unknown rate limiter "x"`, resp.Message)

	resp = NewErrorResponse(stderrors.New("dial tcp: secret host"))
	assert.Equal(t, "internal_error", resp.Error)
	assert.NotContains(t, resp.Message, "secret")
}

func TestRateLimitedResponse(t *testing.T) {
	resp := RateLimitedResponse(42)
	assert.Equal(t, "too_many_requests", resp.Error)
	assert.Equal(t, int64(42), *resp.RetryAfter)
}

func TestNewLimitersResponse(t *testing.T) {
	resp := NewLimitersResponse("memory", []models.RateLimitRule{
		{Name: "upload", Window: time.Hour, MaxRequests: 10, KeyStrategy: models.ByAddressAndPrincipal},
	})
	assert.Equal(t, "memory", resp.Backend)
	assert.Equal(t, LimiterDTO{Name: "upload", Window: "1h0m0s", WindowSeconds: 3600, MaxRequests: 10, KeyStrategy: "address_and_principal"}, resp.Limiters[0])
}
