package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/throttle/pkg/constants"
)

// KeyStrategy selects how a Subject is turned into a rate limit key.
type KeyStrategy int

const (
	// ByAddress keys on the client address only. Authentication endpoints use it
	// so brute force is blocked regardless of the account being attempted.
	ByAddress KeyStrategy = iota
	// ByPrincipal keys on the authenticated principal, falling back to the address
	// for anonymous traffic.
	ByPrincipal
	// ByAddressAndPrincipal gives each principal behind an address its own bucket
	// while anonymous traffic from that address shares one.
	ByAddressAndPrincipal
)

var keyStrategyNames = map[KeyStrategy]string{
	ByAddress:             "address",
	ByPrincipal:           "principal",
	ByAddressAndPrincipal: "address_and_principal",
}

// String implements fmt.Stringer.
func (s KeyStrategy) String() string {
	if name, ok := keyStrategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("KeyStrategy(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s KeyStrategy) MarshalText() ([]byte, error) {
	if _, ok := keyStrategyNames[s]; !ok {
		return nil, fmt.Errorf("unknown key strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *KeyStrategy) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for strategy, candidate := range keyStrategyNames {
		if candidate == name {
			*s = strategy
			return nil
		}
	}
	return fmt.Errorf("unknown key strategy %q", string(text))
}

// Subject describes who is making a request.
type Subject struct {
	// Address is the resolved client network address
	Address string
	// Principal is the authenticated principal id; empty for anonymous traffic
	Principal string
	// Peer is the address of the directly connected client. Trusted sources
	// are matched against it; when empty, Address is used.
	Peer string
}

// Key builds the rate limit key for subject.
func (s KeyStrategy) Key(subject Subject) string {
	address := subject.Address
	if address == "" {
		address = constants.UnknownAddress
	}

	switch s {
	case ByPrincipal:
		if subject.Principal != "" {
			return "user:" + subject.Principal
		}
		return "ip:" + address
	case ByAddressAndPrincipal:
		if subject.Principal != "" {
			return "ip:" + address + ":user:" + subject.Principal
		}
		return "ip:" + address
	default:
		return "ip:" + address
	}
}

// RateLimitRule is one named, immutable rate limit configuration.
type RateLimitRule struct {
	// Name identifies the rule, e.g. "auth"
	Name string `json:"name" yaml:"name"`
	// Window is the length of the sliding window
	Window time.Duration `json:"window" yaml:"window"`
	// MaxRequests is the number of admitted requests allowed within Window
	MaxRequests int `json:"max_requests" yaml:"max_requests"`
	// KeyStrategy selects how requests are grouped into buckets
	KeyStrategy KeyStrategy `json:"key_strategy" yaml:"key_strategy"`
}

// Validate checks the rule invariants.
func (r RateLimitRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rate limit rule name is required")
	}
	if r.Window <= 0 {
		return fmt.Errorf("rate limit rule %q: window must be positive", r.Name)
	}
	if r.MaxRequests <= 0 {
		return fmt.Errorf("rate limit rule %q: max_requests must be positive", r.Name)
	}
	if _, ok := keyStrategyNames[r.KeyStrategy]; !ok {
		return fmt.Errorf("rate limit rule %q: unknown key strategy %d", r.Name, int(r.KeyStrategy))
	}
	return nil
}

// DefaultRules returns the built-in table of named rules.
func DefaultRules() []RateLimitRule {
	return []RateLimitRule{
		{Name: constants.LimiterGeneral, Window: 15 * time.Minute, MaxRequests: 100, KeyStrategy: ByAddressAndPrincipal},
		{Name: constants.LimiterStrict, Window: 15 * time.Minute, MaxRequests: 20, KeyStrategy: ByAddress},
		{Name: constants.LimiterAuth, Window: 15 * time.Minute, MaxRequests: 5, KeyStrategy: ByAddress},
		{Name: constants.LimiterUpload, Window: time.Hour, MaxRequests: 10, KeyStrategy: ByAddressAndPrincipal},
		{Name: constants.LimiterAdmin, Window: 15 * time.Minute, MaxRequests: 200, KeyStrategy: ByAddressAndPrincipal},
		{Name: constants.LimiterGenerous, Window: 15 * time.Minute, MaxRequests: 1000, KeyStrategy: ByAddress},
	}
}

// WindowState is what a store reports after one atomic hit on a key.
type WindowState struct {
	// Admitted reports whether the hit was recorded
	Admitted bool
	// Count is the number of timestamps in the window after pruning and before the append
	Count int
	// Oldest is the oldest retained timestamp after the append; zero when the window is empty
	Oldest time.Time
}

// RateLimitResult is the outcome of one check. It is never persisted.
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// RetryAfter returns the time to wait before retrying; zero when allowed.
func (r RateLimitResult) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (r RateLimitResult) RetryAfterSeconds(now time.Time) int64 {
	return ceilSeconds(r.RetryAfter(now))
}

// Headers returns the response headers describing r.
func (r RateLimitResult) Headers(now time.Time) map[string]string {
	reset := r.ResetAt.Unix()
	if r.ResetAt.Nanosecond() > 0 {
		reset++
	}
	return map[string]string{
		constants.HeaderRateLimitLimit:     strconv.Itoa(r.Limit),
		constants.HeaderRateLimitRemaining: strconv.Itoa(r.Remaining),
		constants.HeaderRateLimitReset:     strconv.FormatInt(reset, 10),
		constants.HeaderRetryAfter:         strconv.FormatInt(r.RetryAfterSeconds(now), 10),
	}
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
