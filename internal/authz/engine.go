package authz

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/authz/expr"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
	"github.com/vyrodovalexey/avauthgate/internal/rules"
)

// tracer is the package-level tracer for authorization spans.
var tracer = otel.Tracer("avauthgate/authz")

// Request describes one access attempt.
type Request struct {
	// Path is the request path, normalized by the engine before matching.
	Path string

	// Method is the HTTP method, or empty when not applicable. Only
	// expression policies see the method; rule patterns are path-only.
	Method string
}

// Engine evaluates requests against the current rule table and
// expression policies. The table and policies are swapped atomically on
// configuration reload, so in-flight requests always see a consistent
// pair and new requests see the replacement immediately.
type Engine struct {
	table    atomic.Pointer[rules.Table]
	policies atomic.Pointer[expr.Evaluator]
	logger   observability.Logger
	metrics  *Metrics
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger.
func WithEngineLogger(logger observability.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEngineMetrics sets the metrics collector.
func WithEngineMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithPolicies sets the expression policy evaluator. Without one the
// engine decides on the rule table alone.
func WithPolicies(ev *expr.Evaluator) EngineOption {
	return func(e *Engine) {
		if ev != nil {
			e.policies.Store(ev)
		}
	}
}

// NewEngine creates an Engine deciding on the given table. A nil table
// is programmer misuse and panics; use rules.Compile(rules.DefaultRules())
// for a reasonable default.
func NewEngine(table *rules.Table, opts ...EngineOption) *Engine {
	if table == nil {
		panic("authz: engine requires a non-nil rule table")
	}
	e := &Engine{
		logger: observability.NopLogger(),
	}
	e.table.Store(table)
	for _, opt := range opts {
		opt(e)
	}
	e.metrics.SetTableSize(table.Len())
	return e
}

// Authorize decides whether a request for path by principal may
// proceed. A nil principal means anonymous. The decision depends only
// on the arguments and the current table and policies; no I/O happens
// here.
func (e *Engine) Authorize(ctx context.Context, path string, principal *auth.Principal) Decision {
	return e.AuthorizeRequest(ctx, Request{Path: path}, principal)
}

// AuthorizeRequest is Authorize with the full request description, for
// callers that have an HTTP method to expose to expression policies.
func (e *Engine) AuthorizeRequest(ctx context.Context, req Request, principal *auth.Principal) Decision {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "authz.authorize")
	defer span.End()

	normalized := NormalizePath(req.Path)

	var (
		verdict = rules.VerdictRequireAuthenticated
		pattern string
	)
	if rule, ok := e.table.Load().Match(normalized); ok {
		verdict = rule.Verdict
		pattern = rule.Pattern
	}

	decision := e.apply(verdict, pattern, principal)

	// Policies narrow admitted requests that carry a principal; an
	// anonymous request admitted by a public rule is not theirs to veto.
	if decision.Allowed && principal.Authenticated() {
		if ok, policy := e.evaluatePolicies(ctx, normalized, req.Method, principal); !ok {
			decision = Decision{
				Allowed: false,
				Reason:  ReasonPolicyDenied,
				Rule:    pattern,
				Policy:  policy,
			}
		}
	}

	span.SetAttributes(
		attribute.String("authz.path", normalized),
		attribute.Bool("authz.allowed", decision.Allowed),
		attribute.String("authz.reason", string(decision.Reason)),
	)
	e.metrics.RecordDecision(string(decision.Reason), time.Since(start))

	if decision.Denied() {
		e.logger.Debug("request denied",
			observability.String("path", normalized),
			observability.String("reason", string(decision.Reason)),
			observability.String("rule", decision.Rule),
			observability.String("subject", subjectOf(principal)),
		)
	}

	return decision
}

// apply maps a verdict onto a decision for the given principal.
func (e *Engine) apply(verdict rules.Verdict, pattern string, principal *auth.Principal) Decision {
	switch verdict {
	case rules.VerdictAdmit:
		return Decision{Allowed: true, Reason: ReasonPublic, Rule: pattern}
	case rules.VerdictDeny:
		return Decision{Allowed: false, Reason: ReasonForbidden, Rule: pattern}
	default:
		if principal.Authenticated() {
			return Decision{Allowed: true, Reason: ReasonAuthenticated, Rule: pattern}
		}
		return Decision{Allowed: false, Reason: ReasonUnauthenticated, Rule: pattern}
	}
}

// evaluatePolicies runs the expression policies, if any are configured.
func (e *Engine) evaluatePolicies(ctx context.Context, path, method string, principal *auth.Principal) (bool, string) {
	ev := e.policies.Load()
	if ev == nil {
		return true, ""
	}

	in := expr.Input{
		Method: method,
		Path:   path,
	}
	if principal != nil {
		in.Subject = principal.Subject
		in.Username = principal.Username
		in.Roles = principal.Roles
		in.Scopes = principal.Scopes
		in.Claims = principal.Claims
	}

	return ev.Evaluate(ctx, in)
}

// SetTable atomically replaces the rule table. In-flight lookups finish
// against the table they started with.
func (e *Engine) SetTable(table *rules.Table) {
	if table == nil {
		panic("authz: engine requires a non-nil rule table")
	}
	e.table.Store(table)
	e.metrics.SetTableSize(table.Len())
	e.metrics.RecordTableSwap()
	e.logger.Info("rule table replaced",
		observability.Int("rules", table.Len()),
	)
}

// SetPolicies atomically replaces the expression policies. A nil
// evaluator removes them.
func (e *Engine) SetPolicies(ev *expr.Evaluator) {
	e.policies.Store(ev)
	e.logger.Info("expression policies replaced",
		observability.Int("policies", ev.Len()),
	)
}

// Table returns the current rule table.
func (e *Engine) Table() *rules.Table {
	return e.table.Load()
}

// subjectOf renders a principal's subject for logging, "" for anonymous.
func subjectOf(p *auth.Principal) string {
	if p == nil {
		return ""
	}
	return p.Subject
}
