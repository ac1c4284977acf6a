package rules

import (
	"errors"
	"fmt"
)

// ErrUnknownVerdict indicates a verdict outside the known set.
var ErrUnknownVerdict = errors.New("unknown verdict")

// InvalidPatternError reports a malformed path pattern at compile time.
type InvalidPatternError struct {
	// Pattern is the offending pattern as written.
	Pattern string

	// Index is the position of the rule within the input slice, or -1
	// when the pattern was parsed standalone.
	Index int

	// Reason describes what is wrong with the pattern.
	Reason string
}

// Error implements the error interface.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid rule pattern %q at index %d: %s", e.Pattern, e.Index, e.Reason)
}

// IsInvalidPattern reports whether err is an InvalidPatternError.
func IsInvalidPattern(err error) bool {
	var ipe *InvalidPatternError
	return errors.As(err, &ipe)
}
