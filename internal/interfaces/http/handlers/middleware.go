package handlers

import (
	goerrors "errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/throttle/internal/application/dto"
	"github.com/turtacn/throttle/internal/interfaces/http/middleware"
	"github.com/turtacn/throttle/pkg/errors"
	"github.com/turtacn/throttle/pkg/logger"
)

// LoggingMiddleware logs incoming requests.
func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		log.Info(c.Request.Context(), "Request processed", logger.Fields{
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"status":        c.Writer.Status(),
			"latency_ms":    latency.Milliseconds(),
			"client_ip":     c.ClientIP(),
			"ratelimit_key": c.GetString(middleware.ContextKeyRateLimitKey),
		})
	}
}

// RecoveryMiddleware recovers from panics.
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error(c.Request.Context(), "Panic recovered", goerrors.New("panic"), logger.Fields{"panic": err})
				dto.SendError(c, errors.ErrInternalServer)
				c.Abort()
			}
		}()
		c.Next()
	}
}
