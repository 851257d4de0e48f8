//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"errors"
	"fmt"
)

// GenericFailureMessage is what frontends show for errors that are not
// user-visible; the full detail goes to the log.
const GenericFailureMessage = "operation failed, see logs for details"

// UserVisibleError carries text meant to be shown to the end user verbatim.
// Reserved for context-window overflow, cloud backend auth/reachability,
// invalid configuration, and a missing tool-server script. Everything else
// is a LogOnlyError.
type UserVisibleError struct {
	Msg string
}

// Error implements the error interface.
func (e *UserVisibleError) Error() string {
	return e.Msg
}

// NewUserVisibleError creates a UserVisibleError with the given text.
func NewUserVisibleError(msg string) *UserVisibleError {
	return &UserVisibleError{Msg: msg}
}

// NewUserVisibleErrorf creates a UserVisibleError with formatted text.
func NewUserVisibleErrorf(format string, args ...any) *UserVisibleError {
	return &UserVisibleError{Msg: fmt.Sprintf(format, args...)}
}

// IsUserVisible reports whether err is, or wraps, a UserVisibleError.
func IsUserVisible(err error) bool {
	var uv *UserVisibleError
	return errors.As(err, &uv)
}

// UserMessage returns the text a frontend should display for err: the
// verbatim message for user-visible errors, the generic message otherwise.
// A nil error yields the empty string.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var uv *UserVisibleError
	if errors.As(err, &uv) {
		return uv.Msg
	}
	return GenericFailureMessage
}

// LogOnlyError wraps an operational error with the operation that produced
// it. The runtime logs it in full; the user sees only the generic message.
type LogOnlyError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *LogOnlyError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *LogOnlyError) Unwrap() error {
	return e.Err
}

// NewLogOnlyError wraps err as log-only under the named operation.
func NewLogOnlyError(op string, err error) *LogOnlyError {
	return &LogOnlyError{Op: op, Err: err}
}
