// Package middleware provides the HTTP middleware the gate wraps
// around the proxy and its own endpoints.
//
// # Components
//
//   - Request ID: unique request identifier injection
//   - Access Log: structured request/response logging
//   - Recovery: panic recovery with stack trace logging
//   - Security Headers: response hardening headers, Server header strip
//   - CORS: Cross-Origin Resource Sharing headers and preflight
//   - Rate Limiting: per-client token bucket limiter
//   - Client IP: trusted proxy-aware client IP extraction
//   - Metrics: request counters and latency histograms
//
// Middleware functions follow the standard Go pattern:
//
//	handler := middleware.RequestID()(
//	    middleware.AccessLog(logger)(
//	        middleware.Recovery(logger)(yourHandler),
//	    ),
//	)
//
// Authentication and authorization middleware live next to their
// engines in internal/auth and internal/authz.
package middleware
