package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/throttle/pkg/constants"
)

func TestKeyStrategy_Key(t *testing.T) {
	alice := Subject{Address: "10.0.0.1", Principal: "alice"}
	anon := Subject{Address: "10.0.0.1"}

	tests := []struct {
		name     string
		strategy KeyStrategy
		subject  Subject
		want     string
	}{
		{"address ignores principal", ByAddress, alice, "ip:10.0.0.1"},
		{"principal uses principal", ByPrincipal, alice, "user:alice"},
		{"principal falls back to address", ByPrincipal, anon, "ip:10.0.0.1"},
		{"combined separates users", ByAddressAndPrincipal, alice, "ip:10.0.0.1:user:alice"},
		{"combined shares anonymous bucket", ByAddressAndPrincipal, anon, "ip:10.0.0.1"},
		{"empty address uses sentinel", ByAddress, Subject{}, "ip:" + constants.UnknownAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.strategy.Key(tt.subject))
		})
	}
}

func TestKeyStrategy_Text(t *testing.T) {
	var s KeyStrategy
	require.NoError(t, s.UnmarshalText([]byte(" Address_And_Principal ")))
	assert.Equal(t, ByAddressAndPrincipal, s)

	text, err := ByPrincipal.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "principal", string(text))

	assert.Error(t, s.UnmarshalText([]byte("by-tenant")))
	_, err = KeyStrategy(42).MarshalText()
	assert.Error(t, err)
}

func TestRateLimitRule_Validate(t *testing.T) {
	for _, rule := range DefaultRules() {
		assert.NoError(t, rule.Validate(), rule.Name)
	}

	assert.Error(t, RateLimitRule{Name: "x", Window: 0, MaxRequests: 1}.Validate())
	assert.Error(t, RateLimitRule{Name: "x", Window: time.Second, MaxRequests: 0}.Validate())
	assert.Error(t, RateLimitRule{Window: time.Second, MaxRequests: 1}.Validate())
	assert.Error(t, RateLimitRule{Name: "x", Window: time.Second, MaxRequests: 1, KeyStrategy: 9}.Validate())
}

func TestDefaultRules_AuthIsAddressOnly(t *testing.T) {
	byName := map[string]RateLimitRule{}
	for _, rule := range DefaultRules() {
		byName[rule.Name] = rule
	}

	require.Len(t, byName, 6)
	assert.Equal(t, ByAddress, byName[constants.LimiterAuth].KeyStrategy)
	assert.Equal(t, ByAddressAndPrincipal, byName[constants.LimiterGeneral].KeyStrategy)
	assert.Equal(t, ByAddressAndPrincipal, byName[constants.LimiterAdmin].KeyStrategy)
}

func TestRateLimitResult_Headers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	rejected := RateLimitResult{Allowed: false, Remaining: 0, Limit: 3, ResetAt: now.Add(1500 * time.Millisecond)}
	h := rejected.Headers(now)
	assert.Equal(t, "3", h[constants.HeaderRateLimitLimit])
	assert.Equal(t, "0", h[constants.HeaderRateLimitRemaining])
	assert.Equal(t, "1700000002", h[constants.HeaderRateLimitReset])
	assert.Equal(t, "2", h[constants.HeaderRetryAfter])

	allowed := RateLimitResult{Allowed: true, Remaining: 2, Limit: 3, ResetAt: now.Add(time.Minute)}
	h = allowed.Headers(now)
	assert.Equal(t, "0", h[constants.HeaderRetryAfter])
	assert.Equal(t, "1700000060", h[constants.HeaderRateLimitReset])
	assert.Equal(t, time.Duration(0), allowed.RetryAfter(now))
}
