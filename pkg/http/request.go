package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig lists proxy CIDR ranges whose forwarding headers are trusted.
type IPConfig struct {
	TrustedProxies []string
}

// ExtractClientIP resolves the client address recorded in security events.
// X-Forwarded-For and X-Real-IP are consulted only when the direct peer is
// a trusted proxy; otherwise they are attacker-controlled and ignored.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := peerAddr(r)

	if config == nil || !addrInRanges(peer, config.TrustedProxies) {
		return peer
	}

	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		hop = strings.TrimSpace(hop)
		if net.ParseIP(hop) != nil {
			return hop
		}
	}

	if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
		return xri
	}

	return peer
}

func peerAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func addrInRanges(addr string, cidrs []string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}
