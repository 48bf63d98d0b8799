// Package httputil holds request helpers shared by HTTP handlers.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller's address in canonical form. With trustProxy
// the leftmost X-Forwarded-For entry, then X-Real-IP, is preferred over
// RemoteAddr; enable it only behind a reverse proxy that sets them.
// Unparseable proxy headers are ignored.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xff := r.Header.Get("X-Forwarded-For")
		if first, _, _ := strings.Cut(xff, ","); first != "" {
			if ip, ok := canonical(first); ok {
				return ip
			}
		}
		if ip, ok := canonical(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip, ok := canonical(host); ok {
		return ip
	}
	return host
}

// LimitKey groups addresses that belong to one client for rate limiting.
// IPv4 addresses stand alone; IPv6 addresses are grouped by /64, the
// smallest block normally assigned to a single site.
func LimitKey(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is6() {
		return ip
	}
	prefix, err := addr.Prefix(64)
	if err != nil {
		return ip
	}
	return prefix.String()
}

func canonical(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.WithZone("").Unmap().String(), true
}
