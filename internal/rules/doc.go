// Package rules implements the ordered path-rule table that classifies
// request paths into verdicts.
//
// A rule pairs a path pattern with a verdict. Patterns are matched
// segment by segment: "*" matches exactly one segment and "**" matches
// any number of segments, including none. Rules are evaluated in
// insertion order and the first match wins; paths matching no rule fall
// through to an implicit RequireAuthenticated catch-all, so every lookup
// produces a verdict.
//
//	table, err := rules.Compile([]rules.Rule{
//	    {Pattern: "/public/**", Verdict: rules.VerdictAdmit},
//	    {Pattern: "/admin/**", Verdict: rules.VerdictDeny},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	table.Lookup("/public/css/site.css") // VerdictAdmit
//	table.Lookup("/orders/42")           // VerdictRequireAuthenticated
//
// A compiled table is immutable and safe for unlimited concurrent
// lookups without locking.
package rules
