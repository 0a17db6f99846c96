package dto

import (
	"time"

	"github.com/turtacn/throttle/internal/domain/models"
)

// LimiterDTO describes one named limiter.
type LimiterDTO struct {
	Name          string `json:"name" yaml:"name"`
	Window        string `json:"window" yaml:"window"`
	WindowSeconds int64  `json:"window_seconds" yaml:"window_seconds"`
	MaxRequests   int    `json:"max_requests" yaml:"max_requests"`
	KeyStrategy   string `json:"key_strategy" yaml:"key_strategy"`
}

// LimitersResponse lists the named limiters.
type LimitersResponse struct {
	Backend  string       `json:"backend" yaml:"backend"`
	Limiters []LimiterDTO `json:"limiters" yaml:"limiters"`
}

// NewLimitersResponse builds the limiter table.
func NewLimitersResponse(backend string, rules []models.RateLimitRule) *LimitersResponse {
	resp := &LimitersResponse{Backend: backend, Limiters: make([]LimiterDTO, 0, len(rules))}
	for _, rule := range rules {
		resp.Limiters = append(resp.Limiters, LimiterDTO{
			Name:          rule.Name,
			Window:        rule.Window.String(),
			WindowSeconds: int64(rule.Window / time.Second),
			MaxRequests:   rule.MaxRequests,
			KeyStrategy:   rule.KeyStrategy.String(),
		})
	}
	return resp
}

// DecisionDTO reports one rate limit decision, used by the echo endpoints and the CLI simulator.
type DecisionDTO struct {
	Limiter   string    `json:"limiter"`
	Key       string    `json:"key"`
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// NewDecisionDTO builds a DecisionDTO.
func NewDecisionDTO(limiter, key string, result models.RateLimitResult) DecisionDTO {
	return DecisionDTO{
		Limiter:   limiter,
		Key:       key,
		Allowed:   result.Allowed,
		Remaining: result.Remaining,
		Limit:     result.Limit,
		ResetAt:   result.ResetAt,
	}
}

// EchoResponse is returned by the demo endpoints hosting the limiters.
type EchoResponse struct {
	Category  string       `json:"category"`
	Principal string       `json:"principal,omitempty"`
	Decision  *DecisionDTO `json:"rate_limit,omitempty"`
}
