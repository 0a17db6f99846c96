package ratelimit_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/throttle/internal/infrastructure/ratelimit"
)

func TestResolveAddress(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded for first entry", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:5555", "203.0.113.7"},
		{"forwarded for wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.1"}, "", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.1"}, "10.0.0.2:5555", "198.51.100.1"},
		{"cdn header", map[string]string{"CF-Connecting-IP": "192.0.2.44"}, "10.0.0.2:5555", "192.0.2.44"},
		{"peer address", nil, "10.0.0.2:5555", "10.0.0.2"},
		{"ipv6 peer address", nil, "[::1]:443", "::1"},
		{"peer without port", nil, "10.0.0.2", "10.0.0.2"},
		{"empty forwarded entry falls through", map[string]string{"X-Forwarded-For": " , 10.0.0.1"}, "10.0.0.3:80", "10.0.0.3"},
		{"nothing known", nil, "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			for k, v := range tt.headers {
				header.Set(k, v)
			}
			assert.Equal(t, tt.want, ratelimit.ResolveAddress(header, tt.remoteAddr))
		})
	}
}

func TestPeerAddress(t *testing.T) {
	assert.Equal(t, "198.51.100.7", ratelimit.PeerAddress("198.51.100.7:40000"))
	assert.Equal(t, "::1", ratelimit.PeerAddress("[::1]:443"))
	assert.Equal(t, "10.0.0.2", ratelimit.PeerAddress(" 10.0.0.2 "))
	assert.Equal(t, "unknown", ratelimit.PeerAddress(""))
}
