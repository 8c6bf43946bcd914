package http

import (
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

// securityMetrics counts refused and flagged requests for /metrics.
type securityMetrics struct {
	rateLimitHits      int64
	suspiciousRequests int64
}

func (m *securityMetrics) snapshot() (rateLimitHits, suspicious int64) {
	return atomic.LoadInt64(&m.rateLimitHits), atomic.LoadInt64(&m.suspiciousRequests)
}

// Only loopback and private peers may forward a client address. The planner
// is deployed behind a local reverse proxy or not at all.
var forwardingPeers = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
}

func canForward(peer netip.Addr) bool {
	peer = peer.Unmap()
	for _, p := range forwardingPeers {
		if p.Contains(peer) {
			return true
		}
	}
	return false
}

// extractClientIP returns the address rate limits and logs are keyed on:
// the peer address, or the first X-Forwarded-For (then X-Real-IP) entry
// when the peer is a trusted forwarder.
func extractClientIP(r *http.Request) string {
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	addr := peer.Addr().Unmap()
	if !canForward(addr) {
		return addr.String()
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		if ip, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return ip.String()
		}
	}
	return addr.String()
}

// Probes for software the planner does not run. Matched against the
// lower-cased path and query.
var probeMarkers = []string{
	"../", "..\\", "/.env", "/.git", "wp-admin", "wp-login", "phpmyadmin",
	".php", "cgi-bin", "etc/passwd", "<script", "union select",
}

var scannerAgents = []string{"sqlmap", "nikto", "nmap", "masscan", "zgrab", "gobuster", "dirbuster"}

const maxURLLength = 2048

// suspiciousReason names what makes r look like a scan, or returns "" for
// an ordinary request. Flagged requests are still served.
func suspiciousReason(r *http.Request) string {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, m := range probeMarkers {
		if strings.Contains(target, m) {
			return "probe:" + m
		}
	}

	agent := strings.ToLower(r.UserAgent())
	for _, a := range scannerAgents {
		if strings.Contains(agent, a) {
			return "scanner:" + a
		}
	}

	switch r.Method {
	case http.MethodTrace, http.MethodConnect, "TRACK", "DEBUG":
		return "method:" + r.Method
	}
	if len(r.URL.RequestURI()) > maxURLLength {
		return "long-url"
	}
	return ""
}
