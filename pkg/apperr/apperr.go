// Package apperr classifies service errors so the HTTP layer can map them
// to fixed status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies an error class.
type Kind int

const (
	// KindInvalidInput marks bad, missing or malformed input.
	KindInvalidInput Kind = iota + 1

	// KindUnauthorized marks a caller without the required rights.
	KindUnauthorized

	// KindNotFound marks a referenced entity that does not exist.
	KindNotFound
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified error. Errors that are not *Error are unexpected.
type Error struct {
	Kind Kind
	Msg  string
}

// Error implements error.
func (e *Error) Error() string {
	return e.Msg
}

// InvalidInput returns a KindInvalidInput error.
func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound reports whether err is a KindNotFound error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// Message returns the message of the first *Error in err's chain, falling
// back to err.Error() for unclassified errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
