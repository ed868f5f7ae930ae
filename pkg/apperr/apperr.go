// Package apperr defines the error values exchanged between engine layers.
//
// Every failure carries a kind, a message safe to show to the end user, and a
// causal trace: an ordered list of "component.operation" entries appended at
// each layer the error crosses. Traces are only ever extended, never
// truncated, so a failure is fully attributable without inspecting stacks.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy and HTTP mapping.
type Kind string

const (
	// KindValidation covers bad input, wrong state and authorization
	// failures. User-correctable.
	KindValidation Kind = "validation"

	// KindNotFound covers missing workflows, executions and nodes. Often a
	// stale reference, sometimes benign.
	KindNotFound Kind = "not_found"

	// KindExternal covers failures of collaborators: cache, queue,
	// listener sources, node behavior dependencies.
	KindExternal Kind = "external"

	// KindInternal is the defensive catch-all for invariant violations.
	KindInternal Kind = "internal"
)

// Error is the structured error type used throughout the engine.
type Error struct {
	Kind        Kind
	UserMessage string
	Trace       []string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.UserMessage, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an error of the given kind with a user-facing message and an
// initial trace entry.
func New(kind Kind, userMessage, trace string) *Error {
	return &Error{Kind: kind, UserMessage: userMessage, Trace: []string{trace}}
}

// Wrap attaches a cause to a new error of the given kind.
func Wrap(kind Kind, userMessage, trace string, cause error) *Error {
	return &Error{Kind: kind, UserMessage: userMessage, Trace: []string{trace}, cause: cause}
}

// Validation builds a user-correctable error.
func Validation(userMessage, trace string) *Error {
	return New(KindValidation, userMessage, trace)
}

// NotFound builds a missing-reference error.
func NotFound(userMessage, trace string) *Error {
	return New(KindNotFound, userMessage, trace)
}

// External builds a collaborator-failure error wrapping its cause.
func External(userMessage, trace string, cause error) *Error {
	return Wrap(KindExternal, userMessage, trace, cause)
}

// Internal builds an invariant-violation error wrapping its cause.
func Internal(userMessage, trace string, cause error) *Error {
	return Wrap(KindInternal, userMessage, trace, cause)
}

// Push appends a trace entry to err and returns it. A plain error is promoted
// to KindInternal so the trace survives layers that return stdlib errors.
func Push(err error, trace string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		ae.Trace = append(ae.Trace, trace)
		return err
	}
	return Wrap(KindInternal, "internal error", trace, err)
}

// KindOf reports the kind of err, or KindInternal for plain errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// UserMessage reports the user-facing message of err, or a generic fallback.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.UserMessage
	}
	return "something went wrong"
}

// TraceOf reports the causal trace of err, empty for plain errors.
func TraceOf(err error) []string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Trace
	}
	return nil
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
