package server

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/middleware"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// Identity headers stamped onto upstream requests for admitted
// principals. Incoming values are always stripped so clients cannot
// impersonate the gate.
const (
	headerXAuthPrefix  = "X-Auth-"
	headerXAuthSubject = "X-Auth-Subject"
	headerXAuthRoles   = "X-Auth-Roles"
)

// bodyBadGateway is the response when the upstream cannot be reached.
const bodyBadGateway = `{"error":"bad gateway"}`

// hopHeaders are the hop-by-hop headers stripped before forwarding,
// per RFC 7230 section 6.1.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// newUpstreamProxy builds the reverse proxy forwarding admitted
// requests to the configured upstream.
func newUpstreamProxy(cfg config.UpstreamConfig, logger observability.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", cfg.URL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme and host are required", cfg.URL)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   durationOr(cfg.DialTimeout, config.DefaultDialTimeout),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          intOr(cfg.MaxIdleConns, 100),
		MaxIdleConnsPerHost:   intOr(cfg.MaxIdleConnsPerHost, 10),
		IdleConnTimeout:       durationOr(cfg.IdleConnTimeout, config.DefaultIdleConnTimeout),
		ResponseHeaderTimeout: durationOr(cfg.ResponseHeaderTimeout, config.DefaultResponseHeaderTimeout),
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	// Immediate flushing keeps server-sent events and other streaming
	// responses moving.
	flushInterval := cfg.FlushInterval.Duration()
	if flushInterval == 0 {
		flushInterval = -1
	}

	return &httputil.ReverseProxy{
		Director:      director(target, cfg.PassHostHeader),
		Transport:     transport,
		FlushInterval: flushInterval,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("proxy error",
				observability.String("path", r.URL.Path),
				observability.String("method", r.Method),
				observability.Error(err),
			)
			observability.SpanFromContext(r.Context()).RecordError(err)
			w.Header().Set(middleware.HeaderContentType, middleware.ContentTypeJSON)
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, bodyBadGateway)
		},
	}, nil
}

// director rewrites requests for the upstream: target scheme and host,
// hop headers stripped, forwarding headers set, and the authenticated
// identity stamped on.
func director(target *url.URL, passHostHeader bool) func(*http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = target.Scheme
		req.URL.Host = target.Host

		for _, h := range hopHeaders {
			req.Header.Del(h)
		}
		stripIdentityHeaders(req.Header)

		if clientIP, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
			if prior := req.Header.Get(middleware.HeaderXForwardedFor); prior != "" {
				clientIP = prior + ", " + clientIP
			}
			req.Header.Set(middleware.HeaderXForwardedFor, clientIP)
		}
		proto := "http"
		if req.TLS != nil {
			proto = "https"
		}
		req.Header.Set(middleware.HeaderXForwardedProto, proto)
		req.Header.Set(middleware.HeaderXForwardedHost, req.Host)
		if requestID := observability.RequestIDFromContext(req.Context()); requestID != "" {
			req.Header.Set(middleware.HeaderXRequestID, requestID)
		}
		observability.InjectTraceContext(req.Context(), req)

		if principal, ok := auth.PrincipalFromContext(req.Context()); ok && principal.Authenticated() {
			req.Header.Set(headerXAuthSubject, principal.Subject)
			if len(principal.Roles) > 0 {
				req.Header.Set(headerXAuthRoles, strings.Join(principal.Roles, ","))
			}
		}

		if !passHostHeader {
			req.Host = target.Host
		}
	}
}

// stripIdentityHeaders removes every client-supplied X-Auth-* header.
func stripIdentityHeaders(h http.Header) {
	for name := range h {
		if strings.HasPrefix(name, headerXAuthPrefix) {
			h.Del(name)
		}
	}
}

// intOr returns n, or def when n is not positive.
func intOr(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
