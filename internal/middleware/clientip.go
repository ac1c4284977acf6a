package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIPExtractor resolves the real client address. X-Forwarded-For
// is trusted only when the direct peer is a configured proxy; with no
// trusted proxies the connection address is used as-is, so clients
// cannot spoof their address with a header.
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor builds an extractor from proxy CIDRs. Bare
// addresses are accepted as single-host networks; entries that parse
// as neither are skipped (config validation reports them).
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		if _, cidr, err := net.ParseCIDR(proxy); err == nil {
			cidrs = append(cidrs, cidr)
			continue
		}
		ip := net.ParseIP(proxy)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		cidrs = append(cidrs, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

// Extract returns the client address for the request. When the peer is
// a trusted proxy, X-Forwarded-For is walked right to left and the
// first address outside the trusted set wins; if the whole chain is
// trusted, the peer address stands.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trustedCIDRs) == 0 || !e.isTrusted(remoteIP) {
		return remoteIP
	}

	xff := r.Header.Get(HeaderXForwardedFor)
	if xff == "" {
		return remoteIP
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !e.isTrusted(hop) {
			return hop
		}
	}

	return remoteIP
}

func (e *ClientIPExtractor) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// stripPort removes the port from "host:port" and "[v6]:port" forms.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// globalExtractor serves the middleware in this package. The default
// trusts nothing but the connection address.
//
//nolint:gochecknoglobals // set once at startup
var globalExtractor = NewClientIPExtractor(nil)

// SetGlobalIPExtractor installs the extractor used by the middleware in
// this package. Call once during startup, before serving.
func SetGlobalIPExtractor(e *ClientIPExtractor) {
	if e != nil {
		globalExtractor = e
	}
}

// getClientIP extracts the client IP via the global extractor.
func getClientIP(r *http.Request) string {
	return globalExtractor.Extract(r)
}

// ClientIP resolves the request's client address via the global
// extractor, for handlers outside this package.
func ClientIP(r *http.Request) string {
	return getClientIP(r)
}
