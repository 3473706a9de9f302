package filterlist

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrUnknownOption is returned for rules with options the engine does not
	// know.  Such rules are dropped entirely.
	ErrUnknownOption errors.Error = "unknown option"

	// ErrUnsupportedRule is returned for rules that are valid but cannot be
	// applied, like $popup or scriptlet rules.
	ErrUnsupportedRule errors.Error = "unsupported rule"

	// ErrBadMagic is returned when a compiled list file does not start or end
	// with the expected magic.
	ErrBadMagic errors.Error = "bad magic"

	// ErrBadChecksum is returned when a compiled list file was modified after
	// it was written.
	ErrBadChecksum errors.Error = "checksum mismatch"

	// ErrBadListID is returned for list identifiers that cannot be used as
	// file names.
	ErrBadListID errors.Error = "bad list id"
)

// RuleSyntaxError describes a line of a list that could not be decoded.
type RuleSyntaxError struct {
	// Err is the underlying error.
	Err error

	// Text is the text of the line.
	Text string

	// Line is the one-based number of the line.
	Line int
}

// type check
var _ errors.Wrapper = (*RuleSyntaxError)(nil)

// Error implements the error interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Error() (msg string) {
	return fmt.Sprintf("line %d: %q: %s", e.Line, e.Text, e.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Unwrap() (unwrapped error) {
	return e.Err
}
