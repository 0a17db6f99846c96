package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/throttle/internal/application/dto"
	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/internal/interfaces/http/middleware"
	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/errors"
)

// CategoryHandler answers the demo endpoints of one limiter category. It echoes
// the category, the caller's principal and the decision the rate limiter made.
func CategoryHandler(category string) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := dto.EchoResponse{
			Category:  category,
			Principal: c.GetString(string(constants.ContextKeyPrincipal)),
		}

		if value, ok := c.Get(middleware.ContextKeyRateLimitResult); ok {
			if result, ok := value.(models.RateLimitResult); ok {
				decision := dto.NewDecisionDTO(category, c.GetString(middleware.ContextKeyRateLimitKey), result)
				resp.Decision = &decision
			}
		}

		status := http.StatusOK
		if c.Request.Method == http.MethodPost {
			status = http.StatusCreated
		}
		c.JSON(status, resp)
	}
}

// NotFound answers unknown routes.
func NotFound(c *gin.Context) {
	dto.SendError(c, errors.ErrNotFound)
}
