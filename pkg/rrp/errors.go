package rrp

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of error identifiers carried in error replies.
type ErrorKind string

const (
	KindBadRequest    ErrorKind = "bad_request"
	KindInvalidValue  ErrorKind = "invalid_value"
	KindInvalidState  ErrorKind = "invalid_state"
	KindNotIdentified ErrorKind = "not_identified"
	KindInternal      ErrorKind = "internal_error"
	KindPlayer        ErrorKind = "player_error"
)

// Error is an error with a protocol kind.
type Error struct {
	Kind ErrorKind
	What string
}

func (e *Error) Error() string {
	if e.What == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.What)
}

// Errorf creates an Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, What: fmt.Sprintf(format, args...)}
}

// KindOf returns the protocol kind of err. Errors without one are internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
