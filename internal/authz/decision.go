package authz

import "path"

// Reason explains why a Decision came out the way it did.
type Reason string

const (
	// ReasonPublic means a rule admits the path without authentication.
	ReasonPublic Reason = "public"

	// ReasonAuthenticated means the path requires authentication and
	// the request carried a live principal.
	ReasonAuthenticated Reason = "authenticated"

	// ReasonUnauthenticated means the path requires authentication and
	// the request carried none. Renders as 401.
	ReasonUnauthenticated Reason = "unauthenticated"

	// ReasonForbidden means a rule denies the path outright, regardless
	// of who is asking. Renders as 403.
	ReasonForbidden Reason = "forbidden"

	// ReasonPolicyDenied means the rule table admitted the request but
	// an expression policy rejected it. Renders as 403.
	ReasonPolicyDenied Reason = "policy_denied"
)

// Decision is the outcome of authorizing one request. Decisions are
// values, not errors: a denial is a normal result, not an exceptional
// condition.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Reason explains the outcome.
	Reason Reason

	// Rule is the pattern of the rule that matched, or empty when the
	// implicit require-authenticated default applied.
	Rule string

	// Policy names the expression policy that denied the request, when
	// Reason is ReasonPolicyDenied.
	Policy string
}

// Denied reports whether the request must be refused.
func (d Decision) Denied() bool {
	return !d.Allowed
}

// NormalizePath returns the canonical form of a request path: an empty
// path becomes "/", a missing leading slash is prefixed, and duplicate
// slashes and dot segments are resolved. Matching against the cleaned
// path keeps "/public/../admin" from slipping past a rule written for
// "/admin/**".
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}
