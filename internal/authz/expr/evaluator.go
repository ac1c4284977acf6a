package expr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/vyrodovalexey/avauthgate/internal/observability"
	"github.com/vyrodovalexey/avauthgate/internal/rules"
)

// Policy binds a path pattern to a CEL expression. Requests matching
// the pattern proceed only when the expression evaluates to true.
type Policy struct {
	// Name identifies the policy in logs, metrics, and decisions.
	Name string `yaml:"name" json:"name"`

	// Pattern selects the paths the policy applies to, with the same
	// wildcard syntax as rule patterns.
	Pattern string `yaml:"pattern" json:"pattern"`

	// Expression is a CEL expression over the request that must
	// evaluate to a bool.
	Expression string `yaml:"expression" json:"expression"`
}

// Input is the request snapshot visible to policy expressions.
// Anonymous requests carry an empty subject and nil role and scope
// lists, so expressions over them evaluate against empty values rather
// than erroring.
type Input struct {
	// Subject is the authenticated subject, or empty for anonymous.
	Subject string

	// Username is the login name, when known.
	Username string

	// Roles are the principal's role names.
	Roles []string

	// Scopes are the principal's OAuth2 scopes.
	Scopes []string

	// Method is the HTTP method, or empty when not applicable.
	Method string

	// Path is the normalized request path.
	Path string

	// Claims are the extra claims from the credential.
	Claims map[string]interface{}
}

// compiledPolicy is a policy with its parsed pattern and CEL program.
type compiledPolicy struct {
	policy  Policy
	pattern *rules.Pattern
	program cel.Program
}

// Evaluator evaluates a fixed set of expression policies. It is
// immutable after New and safe for concurrent use; configuration
// reloads build a fresh evaluator.
type Evaluator struct {
	policies []compiledPolicy
	logger   observability.Logger
	metrics  *Metrics
}

// Option configures the evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(ev *Evaluator) {
		if logger != nil {
			ev.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(ev *Evaluator) {
		ev.metrics = m
	}
}

// New compiles the given policies into an Evaluator. Every policy must
// have a unique non-empty name, a valid path pattern, and an expression
// that compiles to a bool; the first violation aborts construction.
func New(policies []Policy, opts ...Option) (*Evaluator, error) {
	ev := &Evaluator{
		policies: make([]compiledPolicy, 0, len(policies)),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(ev)
	}

	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	seen := make(map[string]struct{}, len(policies))
	for _, p := range policies {
		if p.Name == "" {
			return nil, fmt.Errorf("policy with pattern %q has no name", p.Pattern)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("duplicate policy name %q", p.Name)
		}
		seen[p.Name] = struct{}{}

		pattern, err := rules.ParsePattern(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", p.Name, err)
		}

		program, err := compileExpression(env, p.Expression)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", p.Name, err)
		}

		ev.policies = append(ev.policies, compiledPolicy{
			policy:  p,
			pattern: pattern,
			program: program,
		})
	}

	return ev, nil
}

// newEnv creates the CEL environment with the request variables every
// policy expression may reference.
func newEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("subject", cel.StringType),
		cel.Variable("username", cel.StringType),
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("scopes", cel.ListType(cel.StringType)),
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("claims", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now", cel.TimestampType),
	)
}

// compileExpression compiles one expression and verifies it produces a bool.
func compileExpression(env *cel.Env, expression string) (cel.Program, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression is empty")
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("expression does not compile: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return nil, fmt.Errorf("failed to build program: %w", err)
	}
	return program, nil
}

// Evaluate runs every policy whose pattern matches in.Path. It returns
// true when all of them pass, or false with the name of the first
// policy that denied. Evaluation errors deny: a broken policy must not
// widen access.
func (ev *Evaluator) Evaluate(ctx context.Context, in Input) (bool, string) {
	if ev == nil || len(ev.policies) == 0 {
		return true, ""
	}

	activation := map[string]interface{}{
		"subject":  in.Subject,
		"username": in.Username,
		"roles":    emptyIfNil(in.Roles),
		"scopes":   emptyIfNil(in.Scopes),
		"method":   in.Method,
		"path":     in.Path,
		"claims":   emptyClaimsIfNil(in.Claims),
		"now":      time.Now(),
	}

	for i := range ev.policies {
		cp := &ev.policies[i]
		if !cp.pattern.Matches(in.Path) {
			continue
		}

		start := time.Now()
		result, _, err := cp.program.ContextEval(ctx, activation)
		elapsed := time.Since(start)

		if err != nil {
			ev.metrics.RecordEvaluation(cp.policy.Name, "error", elapsed)
			ev.logger.Warn("policy evaluation failed, denying",
				observability.String("policy", cp.policy.Name),
				observability.String("path", in.Path),
				observability.Error(err),
			)
			return false, cp.policy.Name
		}

		allowed, ok := result.Value().(bool)
		if !ok || !allowed {
			ev.metrics.RecordEvaluation(cp.policy.Name, "denied", elapsed)
			return false, cp.policy.Name
		}
		ev.metrics.RecordEvaluation(cp.policy.Name, "allowed", elapsed)
	}

	return true, ""
}

// Len returns the number of compiled policies.
func (ev *Evaluator) Len() int {
	if ev == nil {
		return 0
	}
	return len(ev.policies)
}

// Policies returns a copy of the policy definitions in evaluation order.
func (ev *Evaluator) Policies() []Policy {
	if ev == nil {
		return nil
	}
	out := make([]Policy, len(ev.policies))
	for i := range ev.policies {
		out[i] = ev.policies[i].policy
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyClaimsIfNil(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
