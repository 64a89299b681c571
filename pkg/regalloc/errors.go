package regalloc

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks instruction facts the allocator refuses to repair:
	// several definitions on one line, a temporary used without a reaching
	// definition, a successor outside the function, an unknown register.
	ErrMalformed = errors.New("malformed instruction facts")

	// ErrPrecolorConflict marks a line that claims one hardware register
	// under two different pre-colored spellings or roles.
	ErrPrecolorConflict = errors.New("conflicting pre-colored registers")
)

// InputError locates a fatal precondition violation
type InputError struct {
	Line   int // dense index of the offending fact
	Source int // line number reported by the producer
	Err    error
	Msg    string
}

func (e *InputError) Error() string {
	if e.Source != e.Line {
		return fmt.Sprintf("line %d (source line %d): %v: %s", e.Line, e.Source, e.Err, e.Msg)
	}
	return fmt.Sprintf("line %d: %v: %s", e.Line, e.Err, e.Msg)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func malformed(line, source int, format string, args ...interface{}) error {
	return &InputError{Line: line, Source: source, Err: ErrMalformed, Msg: fmt.Sprintf(format, args...)}
}

// ErrInvalidAllocation is returned by Verify when a result breaks an
// allocation invariant
var ErrInvalidAllocation = errors.New("invalid allocation")
