package cbor

import (
	"errors"
	"fmt"
)

// Structural decode failures. A *StructuralError wraps one of these, so
// callers can test for them with errors.Is.
var (
	ErrTruncated            = errors.New("unexpected end of input")
	ErrIndefiniteNotAllowed = errors.New("indefinite length not allowed for major type")
	ErrReservedInfo         = errors.New("reserved additional information")
	ErrUnexpectedBreak      = errors.New("unexpected break")
	ErrInvalidChunk         = errors.New("invalid chunk in indefinite-length string")
	ErrMissingMapValue      = errors.New("map key without value")
	ErrUnsupportedKey       = errors.New("unsupported map key type")
	ErrMaxDepth             = errors.New("maximum nesting depth exceeded")
)

// StructuralError reports malformed CBOR input. It is never returned for
// well-formed input, and a failed decode never yields a Null in its place.
type StructuralError struct {
	// Offset is the position in the input where the problem was found.
	Offset int

	// Err is one of the sentinel errors above.
	Err error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("cbor: %v at offset %d", e.Err, e.Offset)
}

// Unwrap returns the sentinel error.
func (e *StructuralError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether err is, or wraps, a *StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
