package rules

import "strings"

// segmentKind discriminates pattern segment types.
type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentSingle              // "*": exactly one segment
	segmentMulti               // "**": zero or more segments
)

// patternSegment is one compiled segment of a path pattern.
type patternSegment struct {
	literal string
	kind    segmentKind
}

// compilePattern parses a pattern into segments, validating syntax.
// Wildcards must stand alone as whole segments; "*" or "**" embedded in
// a literal (e.g. "/as*ts") is rejected so typos fail at startup instead
// of silently never matching.
func compilePattern(pattern string) ([]patternSegment, string) {
	if pattern == "" {
		return nil, "pattern is empty"
	}

	trimmed := strings.TrimPrefix(pattern, "/")
	// A bare "/" matches only the root path.
	if trimmed == "" {
		return []patternSegment{}, ""
	}
	// Trailing slash is cosmetic: "/public/" means "/public".
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return nil, "pattern has no segments"
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]patternSegment, 0, len(parts))

	for _, part := range parts {
		switch {
		case part == "":
			return nil, "pattern contains an empty segment"
		case part == "*":
			segments = append(segments, patternSegment{kind: segmentSingle})
		case part == "**":
			segments = append(segments, patternSegment{kind: segmentMulti})
		case strings.Contains(part, "*"):
			return nil, "wildcards must occupy a whole segment"
		default:
			segments = append(segments, patternSegment{kind: segmentLiteral, literal: part})
		}
	}

	return segments, ""
}

// Pattern is a standalone compiled path pattern, for callers that match
// paths outside a rule table (expression policies, for example).
type Pattern struct {
	raw      string
	segments []patternSegment
}

// ParsePattern compiles a single pattern. Malformed patterns yield an
// *InvalidPatternError with Index -1.
func ParsePattern(pattern string) (*Pattern, error) {
	segments, reason := compilePattern(pattern)
	if reason != "" {
		return nil, &InvalidPatternError{Pattern: pattern, Index: -1, Reason: reason}
	}
	return &Pattern{raw: pattern, segments: segments}, nil
}

// Matches reports whether the pattern matches the given request path.
func (p *Pattern) Matches(path string) bool {
	return matchSegments(p.segments, splitPath(path))
}

// String returns the pattern source text.
func (p *Pattern) String() string {
	return p.raw
}

// splitPath splits a request path into non-empty segments. Duplicate
// slashes and a missing leading slash are tolerated, so "/a//b" and
// "a/b" both yield [a b].
func splitPath(path string) []string {
	if path == "" || path == "/" {
		return nil
	}

	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// matchSegments reports whether the pattern matches the path segments.
// Classic two-pointer matching with backtracking on the most recent
// "**", so "**" may appear anywhere and matches zero or more segments.
func matchSegments(pattern []patternSegment, segs []string) bool {
	px, sx := 0, 0
	backPx, backSx := -1, -1

	for sx < len(segs) {
		if px < len(pattern) {
			switch pattern[px].kind {
			case segmentMulti:
				backPx, backSx = px, sx
				px++
				continue
			case segmentSingle:
				px++
				sx++
				continue
			case segmentLiteral:
				if pattern[px].literal == segs[sx] {
					px++
					sx++
					continue
				}
			}
		}

		if backPx >= 0 {
			// Give the last "**" one more segment and retry.
			backSx++
			px = backPx + 1
			sx = backSx
			continue
		}

		return false
	}

	// Trailing "**" segments match zero remaining segments.
	for px < len(pattern) && pattern[px].kind == segmentMulti {
		px++
	}

	return px == len(pattern)
}
