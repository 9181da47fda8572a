// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package errors

import (
	"context"
	stderr "errors"
	"fmt"
	"log/slog"
	"os"
)

type (
	// Error represents a structured service error.
	Error struct {
		Message string
		Kind    Kind

		NestedError error

		PropertyName  string
		PropertyValue any
	}

	// Kind defines the type of error being returned.
	Kind int
)

// The following are the defined error kinds.
const (
	UnknownError Kind = iota
	ConfigurationInvalid
	ArgumentInvalid
	StateInvalid
	Timeout
	Cancellation
	ExecutionException
	NoResults
)

// Error returns the error as a string.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the nested error, if any.
func (e *Error) Unwrap() error {
	return e.NestedError
}

// Attrs exposes the error's structured fields for logging.
func (e *Error) Attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("kind", e.Kind.String())}
	if e.PropertyName != "" {
		attrs = append(attrs,
			slog.String("property_name", e.PropertyName),
			slog.Any("property_value", e.PropertyValue),
		)
	}
	if e.NestedError != nil {
		attrs = append(attrs, slog.String("nested_error", e.NestedError.Error()))
	}
	return attrs
}

func (k Kind) String() string {
	switch k {
	case ConfigurationInvalid:
		return "configuration invalid"
	case ArgumentInvalid:
		return "argument invalid"
	case StateInvalid:
		return "state invalid"
	case Timeout:
		return "timeout"
	case Cancellation:
		return "cancellation"
	case ExecutionException:
		return "execution exception"
	case NoResults:
		return "no results"
	default:
		return "unknown error"
	}
}

// Is reports whether any error in err's chain is a service error of the given
// kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return stderr.As(err, &e) && e.Kind == kind
}

// Invalid creates an ArgumentInvalid error for the named property.
func Invalid(name string, value any, msg string) *Error {
	return &Error{
		Message:       msg,
		Kind:          ArgumentInvalid,
		PropertyName:  name,
		PropertyValue: value,
	}
}

// Config creates a ConfigurationInvalid error for the named property.
func Config(name string, value any, msg string) *Error {
	return &Error{
		Message:       msg,
		Kind:          ConfigurationInvalid,
		PropertyName:  name,
		PropertyValue: value,
	}
}

// Normalize converts well-known errors into service errors, prefixing the
// message with the name of the failed operation. Service errors are returned
// unchanged.
func Normalize(err error, msg string) error {
	var e *Error
	switch {
	case err == nil:
		return nil

	case stderr.As(err, &e):
		return err

	case os.IsTimeout(err), stderr.Is(err, context.DeadlineExceeded):
		return &Error{
			Message:     fmt.Sprintf("%s timed out", msg),
			Kind:        Timeout,
			NestedError: err,
		}

	case stderr.Is(err, context.Canceled):
		return &Error{
			Message:     fmt.Sprintf("%s cancelled", msg),
			Kind:        Cancellation,
			NestedError: err,
		}

	default:
		return &Error{
			Message:     fmt.Sprintf("%s error: %s", msg, err.Error()),
			Kind:        ExecutionException,
			NestedError: err,
		}
	}
}

// Context extracts the timeout or cancellation error from a context, or nil if
// the context is still live. A cause set on the context is returned as-is.
func Context(ctx context.Context, msg string) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if cause != ctx.Err() {
		return cause
	}
	return Normalize(cause, msg)
}
