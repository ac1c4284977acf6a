package rules

import (
	"fmt"
	"strings"
)

// Verdict is the static classification a path pattern carries.
type Verdict string

// Known verdicts.
const (
	// VerdictAdmit admits the request regardless of authentication state.
	VerdictAdmit Verdict = "admit"

	// VerdictDeny rejects the request regardless of authentication state.
	VerdictDeny Verdict = "deny"

	// VerdictRequireAuthenticated admits the request only when a valid
	// principal is present. It is also the implicit catch-all for paths
	// matching no rule.
	VerdictRequireAuthenticated Verdict = "require_authenticated"
)

// Valid reports whether v is one of the known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictAdmit, VerdictDeny, VerdictRequireAuthenticated:
		return true
	default:
		return false
	}
}

// String returns the verdict as a string.
func (v Verdict) String() string {
	return string(v)
}

// ParseVerdict parses a verdict from its configuration spelling.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admit":
		return VerdictAdmit, nil
	case "deny":
		return VerdictDeny, nil
	case "require_authenticated", "authenticated":
		return VerdictRequireAuthenticated, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVerdict, s)
	}
}

// Rule pairs a path pattern with a verdict. Rule order in a table is
// significant: earlier rules win.
type Rule struct {
	Pattern string  `yaml:"pattern" json:"pattern"`
	Verdict Verdict `yaml:"verdict" json:"verdict"`
}

// String returns a compact representation for logs.
func (r Rule) String() string {
	return fmt.Sprintf("%s -> %s", r.Pattern, r.Verdict)
}

// DefaultRules returns the rule set used when configuration declares
// none: the application shell and public documentation paths are
// admitted, everything else falls through to the authenticated
// catch-all.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/", Verdict: VerdictAdmit},
		{Pattern: "/index.html", Verdict: VerdictAdmit},
		{Pattern: "/assets/**", Verdict: VerdictAdmit},
		{Pattern: "/webjars/**", Verdict: VerdictAdmit},
		{Pattern: "/swagger-ui/**", Verdict: VerdictAdmit},
		{Pattern: "/*/api-docs/**", Verdict: VerdictAdmit},
		{Pattern: "/*/doc/**", Verdict: VerdictAdmit},
		{Pattern: "/public/**", Verdict: VerdictAdmit},
	}
}
