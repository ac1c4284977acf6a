package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// RequestIDHeader is the header carrying the request identifier.
const RequestIDHeader = HeaderXRequestID

// IDGenerator produces request identifiers.
type IDGenerator func() string

// RequestID returns a middleware that tags each request with an
// identifier. An identifier already present on the request is kept, so
// a front load balancer's IDs survive into the logs.
func RequestID() func(http.Handler) http.Handler {
	return RequestIDWithGenerator(func() string {
		return uuid.New().String()
	})
}

// RequestIDWithGenerator returns the request ID middleware with a
// custom generator.
func RequestIDWithGenerator(generate IDGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = generate()
			}

			ctx := observability.ContextWithRequestID(r.Context(), requestID)
			r = r.WithContext(ctx)

			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r)
		})
	}
}
