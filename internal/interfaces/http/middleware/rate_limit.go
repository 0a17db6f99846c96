package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/throttle/internal/application/dto"
	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/internal/domain/service"
	"github.com/turtacn/throttle/internal/infrastructure/ratelimit"
	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/logger"
)

// Gin context keys set by RateLimitMiddleware.
const (
	ContextKeyRateLimitKey    = "ratelimit.key"
	ContextKeyRateLimitResult = "ratelimit.result"
)

// SubjectFromContext describes the caller of the request: the resolved client
// address, the peer address and, when OptionalPrincipal identified one, the
// principal.
func SubjectFromContext(c *gin.Context) models.Subject {
	return models.Subject{
		Address:   ratelimit.ResolveAddress(c.Request.Header, c.Request.RemoteAddr),
		Principal: c.GetString(string(constants.ContextKeyPrincipal)),
		Peer:      ratelimit.PeerAddress(c.Request.RemoteAddr),
	}
}

// RateLimitMiddleware checks every request against limiter. The rate limit
// headers are set on every response; rejected requests are answered with 429.
func RateLimitMiddleware(limiter service.RateLimiter, log logger.Logger) gin.HandlerFunc {
	name := limiter.Rule().Name
	return func(c *gin.Context) {
		key, result := limiter.Check(c.Request.Context(), SubjectFromContext(c))
		now := time.Now()

		for header, value := range result.Headers(now) {
			c.Header(header, value)
		}
		c.Set(ContextKeyRateLimitKey, key)
		c.Set(ContextKeyRateLimitResult, result)

		trace.SpanFromContext(c.Request.Context()).SetAttributes(
			attribute.String("ratelimit.limiter", name),
			attribute.Bool("ratelimit.allowed", result.Allowed),
			attribute.Int("ratelimit.remaining", result.Remaining),
		)

		if !result.Allowed {
			retryAfter := result.RetryAfterSeconds(now)
			log.Warn(c.Request.Context(), "Rate limit exceeded",
				logger.String("limiter", name),
				logger.String("key", key),
				logger.Fields{"retry_after": retryAfter},
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.RateLimitedResponse(retryAfter))
			return
		}

		c.Next()
	}
}
