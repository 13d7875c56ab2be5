package core

import (
	"errors"
	"fmt"

	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitRuntime  = 1
	ExitUsage    = 2
	ExitIdentity = 3
	ExitState    = 4
	ExitNotFound = 5
)

// CLIError carries a user-visible message and exit code.
type CLIError struct {
	Code int
	Msg  string
	Err  error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// WrapError creates a CLIError with an underlying error.
func WrapError(code int, msg string, err error) *CLIError {
	return &CLIError{Code: code, Msg: msg, Err: err}
}

// ErrorForReplyKind maps protocol error kinds to CLI exit codes.
func ErrorForReplyKind(kind rrp.ErrorKind, what string) *CLIError {
	msg := string(kind)
	if what != "" {
		msg = fmt.Sprintf("%s: %s", kind, what)
	}
	err := &rrp.Error{Kind: kind, What: what}
	switch kind {
	case rrp.KindBadRequest, rrp.KindInvalidValue:
		return &CLIError{Code: ExitUsage, Msg: msg, Err: err}
	case rrp.KindNotIdentified:
		return &CLIError{Code: ExitIdentity, Msg: msg, Err: err}
	case rrp.KindInvalidState:
		return &CLIError{Code: ExitState, Msg: msg, Err: err}
	default:
		return &CLIError{Code: ExitRuntime, Msg: msg, Err: err}
	}
}

// ExitCode returns the CLI exit code from error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return ExitRuntime
}
