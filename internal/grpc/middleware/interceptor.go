package middleware

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/vyrodovalexey/avauthgate/internal/audit"
	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/authz"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// RequestIDMetadataKey is the incoming metadata key carrying the
// request identifier, for correlation with a fronting proxy.
const RequestIDMetadataKey = "x-request-id"

// gate runs the authentication and authorization pipeline for one call.
type gate struct {
	authn         auth.Authenticator
	engine        *authz.Engine
	extractor     auth.Extractor
	logger        observability.Logger
	audit         *audit.Logger
	rejectInvalid bool
}

// Option configures the interceptors.
type Option func(*gate)

// WithExtractor replaces the credential extractor. The default reads
// the authorization metadata key with the Bearer scheme.
func WithExtractor(e auth.Extractor) Option {
	return func(g *gate) {
		if e != nil {
			g.extractor = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithAuditLogger sets the audit logger receiving denial events.
func WithAuditLogger(l *audit.Logger) Option {
	return func(g *gate) {
		g.audit = l
	}
}

// WithRejectInvalid selects strict mode: calls carrying credentials
// that fail validation abort with Unauthenticated instead of continuing
// as anonymous.
func WithRejectInvalid(reject bool) Option {
	return func(g *gate) {
		g.rejectInvalid = reject
	}
}

func newGate(authn auth.Authenticator, engine *authz.Engine, opts []Option) *gate {
	g := &gate{
		authn:     authn,
		engine:    engine,
		extractor: auth.NewExtractor(nil),
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// UnaryServerInterceptor returns a unary interceptor that authenticates
// the caller and authorizes the full method against the rule table.
// Admitted calls run the handler with the principal on the context.
func UnaryServerInterceptor(authn auth.Authenticator, engine *authz.Engine, opts ...Option) grpc.UnaryServerInterceptor {
	g := newGate(authn, engine, opts)
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx, err := g.admit(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the stream counterpart of
// UnaryServerInterceptor. The handler receives a stream whose context
// carries the principal.
func StreamServerInterceptor(authn auth.Authenticator, engine *authz.Engine, opts ...Option) grpc.StreamServerInterceptor {
	g := newGate(authn, engine, opts)
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := g.admit(stream.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &principalServerStream{ServerStream: stream, ctx: ctx})
	}
}

// admit authenticates and authorizes one call. It returns the handler
// context, with the principal attached when one was established, or a
// status error that aborts the call.
func (g *gate) admit(ctx context.Context, fullMethod string) (context.Context, error) {
	principal, err := g.authenticate(ctx, fullMethod)
	if err != nil {
		return nil, err
	}

	decision := g.engine.AuthorizeRequest(ctx, authz.Request{Path: fullMethod}, principal)
	if decision.Denied() {
		g.recordDenial(ctx, fullMethod, principal, decision)
		return nil, denialStatus(decision)
	}

	if principal != nil {
		ctx = auth.ContextWithPrincipal(ctx, principal)
	}
	return ctx, nil
}

// authenticate establishes the caller's principal from incoming
// metadata. A call without credentials is anonymous, not an error; the
// rule table decides whether anonymous access suffices.
func (g *gate) authenticate(ctx context.Context, fullMethod string) (*auth.Principal, error) {
	cred, err := g.extractor.ExtractFromMetadata(ctx)
	if errors.Is(err, auth.ErrNoCredentials) {
		return nil, nil
	}

	var principal *auth.Principal
	if err == nil {
		principal, err = g.authn.ValidateToken(ctx, cred.Token)
	}
	if err == nil {
		return principal, nil
	}

	g.logger.Debug("grpc authentication failed",
		observability.String("method", fullMethod),
		observability.Error(err),
	)

	if !auth.IsCredentialRejection(err) {
		return nil, status.Error(codes.Unavailable, "credential validation unavailable")
	}
	if g.rejectInvalid {
		g.recordAuthRejection(ctx, fullMethod, err)
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}

	// Lenient mode: the bad credential is dropped and the rule table
	// decides what anonymous callers may reach.
	return nil, nil
}

// recordDenial emits an authorization audit event.
func (g *gate) recordDenial(ctx context.Context, fullMethod string, principal *auth.Principal, decision authz.Decision) {
	event := audit.Authorization(subjectOf(principal), audit.DecisionDeny, string(decision.Reason)).
		WithRoute("", fullMethod).
		WithClientIP(clientAddrFrom(ctx))
	event.RequestID = requestIDFrom(ctx)
	g.audit.Record(ctx, event)
}

// recordAuthRejection emits an authentication audit event for a
// strict-mode abort.
func (g *gate) recordAuthRejection(ctx context.Context, fullMethod string, err error) {
	event := audit.Authentication("", audit.DecisionDeny, err.Error()).
		WithRoute("", fullMethod).
		WithClientIP(clientAddrFrom(ctx))
	event.RequestID = requestIDFrom(ctx)
	g.audit.Record(ctx, event)
}

// denialStatus maps a decision onto the gRPC status that aborts the
// call. Messages are deliberately uniform; denials never explain which
// rule or policy fired.
func denialStatus(d authz.Decision) error {
	if d.Reason == authz.ReasonUnauthenticated {
		return status.Error(codes.Unauthenticated, "authentication required")
	}
	return status.Error(codes.PermissionDenied, "access denied")
}

// principalServerStream overrides the stream context with the admitted
// one.
type principalServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the admitted context.
func (s *principalServerStream) Context() context.Context {
	return s.ctx
}

func subjectOf(p *auth.Principal) string {
	if p == nil {
		return ""
	}
	return p.Subject
}

// clientAddrFrom extracts the client address from the peer info.
func clientAddrFrom(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok {
		return p.Addr.String()
	}
	return ""
}

// requestIDFrom extracts the request identifier from the correlation
// context, falling back to incoming metadata.
func requestIDFrom(ctx context.Context) string {
	if requestID := observability.RequestIDFromContext(ctx); requestID != "" {
		return requestID
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(RequestIDMetadataKey); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}
