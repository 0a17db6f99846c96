package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/turtacn/throttle/pkg/constants"
)

// ResolveAddress returns the client address of a request. Proxy headers are
// consulted first (the first X-Forwarded-For entry, then X-Real-IP, then
// CF-Connecting-IP), then the host part of the peer address.
func ResolveAddress(header http.Header, remoteAddr string) string {
	if forwarded := header.Get(constants.HeaderForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(header.Get(constants.HeaderRealIP)); realIP != "" {
		return realIP
	}
	if cdnIP := strings.TrimSpace(header.Get(constants.HeaderCDNConnectingIP)); cdnIP != "" {
		return cdnIP
	}

	return PeerAddress(remoteAddr)
}

// PeerAddress returns the host part of the address of the directly connected
// client, ignoring any proxy headers.
func PeerAddress(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return constants.UnknownAddress
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}
