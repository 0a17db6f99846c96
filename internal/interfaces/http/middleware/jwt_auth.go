package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/logger"
)

// PrincipalVerifier resolves a bearer token to a principal id.
type PrincipalVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// extractBearer extracts the token from the Authorization header.
func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// OptionalPrincipal identifies the caller from a bearer JWT. Missing or invalid
// tokens leave the request anonymous; authentication itself is enforced elsewhere.
// A nil verifier makes the middleware a no-op.
func OptionalPrincipal(verifier PrincipalVerifier, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}

		tokenStr := extractBearer(c.GetHeader(constants.HeaderAuthorization))
		if tokenStr == "" {
			c.Next()
			return
		}

		principal, err := verifier.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			log.Debug(c.Request.Context(), "Ignoring invalid bearer token", logger.String("reason", err.Error()))
			c.Next()
			return
		}

		c.Set(string(constants.ContextKeyPrincipal), principal)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), constants.ContextKeyPrincipal, principal))
		c.Next()
	}
}
