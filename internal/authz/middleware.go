package authz

import (
	"context"
	"net/http"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// HTTP header and content type constants for decision rendering.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderWWWAuthenticate is the WWW-Authenticate header name.
	HeaderWWWAuthenticate = "WWW-Authenticate"

	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"

	// challengeBearer is the WWW-Authenticate challenge sent with 401
	// responses, per RFC 6750.
	challengeBearer = "Bearer"
)

// JSON bodies for denial responses. Deliberately uniform: denial
// responses never explain which rule or policy fired.
const (
	bodyUnauthenticated = `{"error":"authentication required"}`
	bodyForbidden       = `{"error":"access denied"}`
)

// DenialHook receives every denied request, for audit trails. The hook
// runs on the request path and must not block.
type DenialHook func(ctx context.Context, r *http.Request, principal *auth.Principal, decision Decision)

// middleware carries the dependencies of the authorization middleware.
type middleware struct {
	engine     *Engine
	logger     observability.Logger
	denialHook DenialHook
}

// MiddlewareOption configures the authorization middleware.
type MiddlewareOption func(*middleware)

// WithMiddlewareLogger sets the logger.
func WithMiddlewareLogger(logger observability.Logger) MiddlewareOption {
	return func(m *middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDenialHook registers a hook invoked for every denied request.
func WithDenialHook(hook DenialHook) MiddlewareOption {
	return func(m *middleware) {
		m.denialHook = hook
	}
}

// Middleware returns HTTP middleware that authorizes every request
// through the engine. Denials are rendered as 401 with a bearer
// challenge when authentication is missing, and as 403 otherwise.
// Admitted requests continue down the chain unchanged.
func Middleware(engine *Engine, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := &middleware{
		engine: engine,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := auth.PrincipalFromContext(r.Context())

			decision := m.engine.AuthorizeRequest(r.Context(), Request{
				Path:   r.URL.Path,
				Method: r.Method,
			}, principal)

			if decision.Denied() {
				m.deny(w, r, principal, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// deny renders a denial decision onto the HTTP response.
func (m *middleware) deny(w http.ResponseWriter, r *http.Request, principal *auth.Principal, decision Decision) {
	m.logger.Info("request denied",
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
		observability.String("reason", string(decision.Reason)),
		observability.String("rule", decision.Rule),
		observability.String("subject", subjectOf(principal)),
		observability.String("request_id", observability.RequestIDFromContext(r.Context())),
	)

	if m.denialHook != nil {
		m.denialHook(r.Context(), r, principal, decision)
	}

	if decision.Reason == ReasonUnauthenticated {
		writeUnauthenticated(w)
		return
	}
	writeForbidden(w)
}

// writeUnauthenticated renders 401 with a bearer challenge.
func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.Header().Set(HeaderWWWAuthenticate, challengeBearer)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(bodyUnauthenticated))
}

// writeForbidden renders 403.
func writeForbidden(w http.ResponseWriter) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(bodyForbidden))
}
