// Package constants defines system-wide constants for the throttle service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Named Limiter Constants
// ================================================================================

// LimiterName identifies one named rate limit configuration.
type LimiterName = string

const (
	// LimiterGeneral covers ordinary API traffic
	LimiterGeneral LimiterName = "general"

	// LimiterStrict covers expensive endpoints
	LimiterStrict LimiterName = "strict"

	// LimiterAuth covers authentication endpoints (login, password reset)
	LimiterAuth LimiterName = "auth"

	// LimiterUpload covers file uploads
	LimiterUpload LimiterName = "upload"

	// LimiterAdmin covers the administrative console API
	LimiterAdmin LimiterName = "admin"

	// LimiterGenerous covers cheap public reads
	LimiterGenerous LimiterName = "generous"
)

// ================================================================================
// Rate Limit Constants
// ================================================================================

const (
	// DefaultSweepInterval is the housekeeping interval of in-memory stores.
	// It does not depend on any rule's window.
	DefaultSweepInterval = 1 * time.Minute

	// GenerousLimit is the synthetic limit reported for trusted and fail-open results
	GenerousLimit = 1000

	// GenerousRemaining is the synthetic remaining quota reported for trusted and fail-open results
	GenerousRemaining = 999

	// UnknownAddress is the sentinel used when no client address can be resolved
	UnknownAddress = "unknown"

	// CacheKeyPrefixRateLimit is the prefix for rate limiting entries in Redis
	CacheKeyPrefixRateLimit = "ratelimit:"
)

// DefaultTrustedSources are always admitted without consulting any store.
var DefaultTrustedSources = []string{"127.0.0.1", "::1"}

// ================================================================================
// HTTP Header Constants
// ================================================================================

const (
	// HeaderRateLimitLimit carries the window ceiling
	HeaderRateLimitLimit = "X-RateLimit-Limit"

	// HeaderRateLimitRemaining carries the quota left in the current window
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"

	// HeaderRateLimitReset carries the reset time as epoch seconds
	HeaderRateLimitReset = "X-RateLimit-Reset"

	// HeaderRetryAfter carries the seconds to wait before retrying
	HeaderRetryAfter = "Retry-After"

	// HeaderForwardedFor is the proxy chain header; the first entry is the client
	HeaderForwardedFor = "X-Forwarded-For"

	// HeaderRealIP is set by reverse proxies such as nginx
	HeaderRealIP = "X-Real-IP"

	// HeaderCDNConnectingIP is set by Cloudflare
	HeaderCDNConnectingIP = "CF-Connecting-IP"

	// HeaderRequestID carries the request correlation id
	HeaderRequestID = "X-Request-ID"

	// HeaderAuthorization carries the bearer token
	HeaderAuthorization = "Authorization"
)

// ================================================================================
// JWT Claim Keys
// ================================================================================

// ClaimKeySubject is the standard "sub" claim
const ClaimKeySubject = "sub"

// ================================================================================
// Service Configuration Constants
// ================================================================================

const (
	// DefaultServicePort is the default HTTP service port
	DefaultServicePort = 8080

	// DefaultOpsPort is the default port of the ops listener (metrics, health)
	DefaultOpsPort = 9090

	// DefaultShutdownTimeout is the graceful shutdown timeout (30 seconds)
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultPrincipalCacheTTL bounds how long a verified token is remembered
	DefaultPrincipalCacheTTL = 5 * time.Minute
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID is the key for distributed trace ID in context
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeyPrincipal is the key for the authenticated principal id
	ContextKeyPrincipal ContextKey = "principal"
)
