// Package introspect validates opaque tokens against a remote OAuth 2.0
// token introspection endpoint (RFC 7662). The remote call is guarded by
// a circuit breaker and bounded retries so a slow or failing endpoint
// degrades to "validator unavailable" instead of stalling every request.
package introspect
