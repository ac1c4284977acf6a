package middleware

// HTTP header constants.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderRetryAfter is the Retry-After header name.
	HeaderRetryAfter = "Retry-After"

	// HeaderXRequestID is the X-Request-ID header name.
	HeaderXRequestID = "X-Request-ID"

	// HeaderXForwardedFor is the X-Forwarded-For header name.
	HeaderXForwardedFor = "X-Forwarded-For"

	// HeaderXForwardedProto is the X-Forwarded-Proto header name.
	HeaderXForwardedProto = "X-Forwarded-Proto"

	// HeaderXForwardedHost is the X-Forwarded-Host header name.
	HeaderXForwardedHost = "X-Forwarded-Host"

	// HeaderOrigin is the Origin header name.
	HeaderOrigin = "Origin"
)

// ContentTypeJSON is the JSON content type.
const ContentTypeJSON = "application/json"

// Error response bodies. Everything the gate writes itself is JSON.
const (
	// ErrRateLimitExceeded is the body for throttled requests.
	ErrRateLimitExceeded = `{"error":"rate limit exceeded"}`

	// ErrInternalServerError is the body for recovered panics.
	ErrInternalServerError = `{"error":"internal server error"}`
)
