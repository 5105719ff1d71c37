package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport errors.
var (
	// ErrBodyTooLarge indicates a body exceeded the configured maximum size.
	ErrBodyTooLarge = errors.New("body too large")

	// ErrEmptyBody indicates a request that requires a body had none.
	ErrEmptyBody = errors.New("body is empty")

	// ErrStreamingUnsupported indicates the ResponseWriter cannot flush.
	ErrStreamingUnsupported = errors.New("streaming not supported")

	// ErrUnauthorized indicates a missing or wrong token.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is returned by Client when the device answers with a
// non-success status code.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string

	// Message is the device's error text, taken from a CBOR {error: ...}
	// body when present.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps 401 and 403 to ErrUnauthorized.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// IsNotFound reports whether err is a StatusError with status 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
