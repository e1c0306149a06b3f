package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess  Code = 0
	CodeInternal Code = 1
	CodeUsage    Code = 2

	// CodeNotFound marks operations that referenced an unknown strategy or
	// record id. Lifecycle paths recover from it locally; it only surfaces
	// as an exit code when the user asked for the record directly.
	CodeNotFound Code = 10

	// CodePrecondition marks ledger writes attempted without a connected
	// wallet. Nothing was mutated; the user can connect and retry.
	CodePrecondition Code = 11

	// CodeRejected marks a submission the wallet owner refused to sign.
	// Retrying without user action is pointless.
	CodeRejected Code = 12

	// CodeTransient marks network failures and provider outages. The
	// operation had no effect and may be retried.
	CodeTransient Code = 13

	// CodeTimeout marks submissions that did not resolve within the
	// configured deadline. Treated as transient by callers.
	CodeTimeout Code = 14

	// CodeFatal marks protocol and serialization mismatches. Retrying
	// cannot help.
	CodeFatal Code = 15

	// CodeStorage marks local persistence failures. Reads degrade to
	// empty results; writes report failure without crashing.
	CodeStorage Code = 16

	CodeAuth Code = 17
)

// Error is a typed error that carries a stable classification code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the classification code of err, CodeInternal for
// untyped errors and CodeSuccess for nil.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if typed, ok := As(err); ok {
		return typed.Code
	}
	return CodeInternal
}

// Retryable reports whether the failure class permits a retry without
// further user action.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeTransient, CodeTimeout:
		return true
	}
	return false
}

func ExitCode(err error) int {
	return int(CodeOf(err))
}
