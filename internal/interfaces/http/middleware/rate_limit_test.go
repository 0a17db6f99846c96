package middleware

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/throttle/internal/application/dto"
	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/internal/infrastructure/ratelimit"
	"github.com/turtacn/throttle/pkg/errors"
	"github.com/turtacn/throttle/pkg/logger"
)

func newTestLimiter(t *testing.T, max int, strategy models.KeyStrategy) *ratelimit.SlidingWindowLimiter {
	t.Helper()
	rule := models.RateLimitRule{Name: "test", Window: time.Minute, MaxRequests: max, KeyStrategy: strategy}
	store := ratelimit.NewMemoryStore(rule.Name, rule.Window, ratelimit.WithSweepInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	limiter, err := ratelimit.NewSlidingWindowLimiter(rule, store, logger.NewNoopLogger())
	require.NoError(t, err)
	return limiter
}

func newRateLimitedRouter(limiter *ratelimit.SlidingWindowLimiter, verifier PrincipalVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewNoopLogger()

	router := gin.New()
	router.Use(OptionalPrincipal(verifier, log))
	router.Use(RateLimitMiddleware(limiter, log))
	router.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doRequest(router http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("should allow requests within the limit and set headers", func(t *testing.T) {
		router := newRateLimitedRouter(newTestLimiter(t, 2, models.ByAddress), nil)

		w := doRequest(router, "10.0.0.1:1234", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "0", w.Header().Get("Retry-After"))

		reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
		require.NoError(t, err)
		assert.InDelta(t, time.Now().Add(time.Minute).Unix(), reset, 2)
	})

	t.Run("should deny requests over the limit with 429", func(t *testing.T) {
		router := newRateLimitedRouter(newTestLimiter(t, 2, models.ByAddress), nil)

		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1234", nil).Code)
		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1234", nil).Code)

		w := doRequest(router, "10.0.0.1:1234", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

		retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
		require.NoError(t, err)
		assert.True(t, retryAfter > 0 && retryAfter <= 60)

		var body dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "too_many_requests", body.Error)
		assert.NotEmpty(t, body.Message)
		require.NotNil(t, body.RetryAfter)
		assert.Equal(t, int64(retryAfter), *body.RetryAfter)
	})

	t.Run("should key on the forwarded client address", func(t *testing.T) {
		router := newRateLimitedRouter(newTestLimiter(t, 1, models.ByAddress), nil)

		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.9:80", map[string]string{"X-Forwarded-For": "203.0.113.1"}).Code)
		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.9:80", map[string]string{"X-Forwarded-For": "203.0.113.2"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "10.0.0.9:80", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.9"}).Code)
	})

	t.Run("should never limit trusted sources", func(t *testing.T) {
		router := newRateLimitedRouter(newTestLimiter(t, 1, models.ByAddress), nil)

		for i := 0; i < 5; i++ {
			w := doRequest(router, "127.0.0.1:5555", nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "1000", w.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, "999", w.Header().Get("X-RateLimit-Remaining"))
		}
	})

	t.Run("should not trust a forwarded loopback address", func(t *testing.T) {
		router := newRateLimitedRouter(newTestLimiter(t, 1, models.ByAddress), nil)
		spoofed := map[string]string{"X-Forwarded-For": "127.0.0.1"}

		w := doRequest(router, "198.51.100.7:40000", spoofed)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

		for i := 0; i < 10; i++ {
			w = doRequest(router, "198.51.100.7:40000", spoofed)
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("should give each principal its own bucket", func(t *testing.T) {
		verifier := stubVerifier{"token-alice": "alice", "token-bob": "bob"}
		router := newRateLimitedRouter(newTestLimiter(t, 1, models.ByAddressAndPrincipal), verifier)

		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1", map[string]string{"Authorization": "Bearer token-alice"}).Code)
		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1", map[string]string{"Authorization": "Bearer token-bob"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "10.0.0.1:1", map[string]string{"Authorization": "Bearer token-alice"}).Code)
	})

	t.Run("should ignore the principal for address-only limiters", func(t *testing.T) {
		verifier := stubVerifier{"token-alice": "alice", "token-bob": "bob"}
		router := newRateLimitedRouter(newTestLimiter(t, 1, models.ByAddress), verifier)

		assert.Equal(t, http.StatusOK, doRequest(router, "10.0.0.1:1", map[string]string{"Authorization": "Bearer token-alice"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, doRequest(router, "10.0.0.1:1", map[string]string{"Authorization": "Bearer token-bob"}).Code)
	})

	t.Run("should fail open when the store fails", func(t *testing.T) {
		rule := models.RateLimitRule{Name: "test", Window: time.Minute, MaxRequests: 1}
		limiter, err := ratelimit.NewSlidingWindowLimiter(rule, brokenStore{}, logger.NewNoopLogger())
		require.NoError(t, err)
		router := newRateLimitedRouter(limiter, nil)

		for i := 0; i < 3; i++ {
			w := doRequest(router, "10.0.0.1:1", nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "999", w.Header().Get("X-RateLimit-Remaining"))
		}
	})
}

type brokenStore struct{}

func (brokenStore) Hit(context.Context, string, time.Time, int) (models.WindowState, error) {
	return models.WindowState{}, errors.Internal(stderrors.New("connection refused"), "store hit")
}

func (brokenStore) Reset(context.Context, string) error { return nil }

func (brokenStore) Close() error { return nil }
