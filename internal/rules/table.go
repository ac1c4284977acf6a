package rules

// compiledRule holds a rule together with its parsed pattern.
type compiledRule struct {
	rule     Rule
	segments []patternSegment
}

// Table is an ordered, compiled set of path rules. It is immutable after
// Compile and safe for concurrent lookups; configuration reloads build a
// fresh table rather than mutating an existing one.
type Table struct {
	rules []compiledRule
}

// Compile builds an immutable table from the given rules. It returns an
// *InvalidPatternError for malformed patterns and for verdicts outside
// the known set; a table with a broken rule is never produced.
func Compile(ruleSet []Rule) (*Table, error) {
	compiled := make([]compiledRule, 0, len(ruleSet))

	for i, r := range ruleSet {
		segments, reason := compilePattern(r.Pattern)
		if reason != "" {
			return nil, &InvalidPatternError{
				Pattern: r.Pattern,
				Index:   i,
				Reason:  reason,
			}
		}

		if !r.Verdict.Valid() {
			return nil, &InvalidPatternError{
				Pattern: r.Pattern,
				Index:   i,
				Reason:  "verdict " + string(r.Verdict) + " is not one of admit, deny, require_authenticated",
			}
		}

		compiled = append(compiled, compiledRule{rule: r, segments: segments})
	}

	return &Table{rules: compiled}, nil
}

// MustCompile is Compile that panics on error, for static rule sets.
func MustCompile(ruleSet []Rule) *Table {
	t, err := Compile(ruleSet)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the verdict of the first rule matching path, or
// VerdictRequireAuthenticated when no rule matches. Matching compares
// path segments, never raw substrings: "/assets/**" matches
// "/assets/img/x.png" but not "/assets-backup/x".
func (t *Table) Lookup(path string) Verdict {
	if rule, ok := t.Match(path); ok {
		return rule.Verdict
	}
	return VerdictRequireAuthenticated
}

// Match returns the first rule matching path. ok is false when the path
// falls through to the implicit catch-all.
func (t *Table) Match(path string) (Rule, bool) {
	segs := splitPath(path)

	for i := range t.rules {
		if matchSegments(t.rules[i].segments, segs) {
			return t.rules[i].rule, true
		}
	}

	return Rule{}, false
}

// Len returns the number of explicit rules in the table, excluding the
// implicit catch-all.
func (t *Table) Len() int {
	return len(t.rules)
}

// Rules returns a copy of the table's rules in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i := range t.rules {
		out[i] = t.rules[i].rule
	}
	return out
}
