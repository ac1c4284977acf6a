package server

import (
	"context"
	"net/http"

	"github.com/vyrodovalexey/avauthgate/internal/audit"
	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/authz"
	"github.com/vyrodovalexey/avauthgate/internal/middleware"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// buildHandler assembles the middleware chain in front of the login
// endpoints and the reverse proxy. Order matters: observability first,
// then hardening, then throttling, then the decision pipeline.
func (s *Server) buildHandler(proxy http.Handler) http.Handler {
	cfg := s.Config()

	mux := http.NewServeMux()
	if s.login != nil {
		mux.Handle(s.login.path, http.HandlerFunc(s.login.handleLogin))
		if s.login.logoutPath != "" {
			mux.Handle(s.login.logoutPath, http.HandlerFunc(s.login.handleLogout))
		}
	}
	mux.Handle("/", proxy)

	rateLimit, limiter := middleware.RateLimitFromConfig(cfg.RateLimit, s.logger)
	s.globalLimiter = limiter

	var handler http.Handler = mux
	handler = authz.Middleware(s.engine,
		authz.WithMiddlewareLogger(s.logger),
		authz.WithDenialHook(s.denialHook()),
	)(handler)
	handler = s.authn.Middleware()(handler)
	handler = rateLimit(handler)
	handler = middleware.CORS(cfg.CORS)(handler)
	handler = middleware.SecurityHeaders(cfg.SecurityHeaders)(handler)
	handler = middleware.Recovery(s.logger)(handler)
	handler = middleware.Metrics()(handler)
	if cfg.Logging.AccessLog {
		handler = middleware.AccessLog(s.logger)(handler)
	}
	if s.tracer != nil {
		handler = observability.TracingMiddleware(s.tracer)(handler)
	}
	handler = middleware.RequestID()(handler)

	return handler
}

// denialHook records every denied request in the audit log.
func (s *Server) denialHook() authz.DenialHook {
	return func(ctx context.Context, r *http.Request, principal *auth.Principal, decision authz.Decision) {
		var subject string
		if principal != nil {
			subject = principal.Subject
		}
		event := audit.Authorization(subject, audit.DecisionDeny, string(decision.Reason)).
			WithRoute(r.Method, r.URL.Path).
			WithClientIP(middleware.ClientIP(r))
		s.audit.Record(ctx, event)
	}
}
