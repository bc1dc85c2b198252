// Package cortexerr defines the error taxonomy shared by every layer of the
// memory orchestrator: Validation, NotFound, Conflict, InvariantViolation,
// Transport (all fatal, propagated to the caller) and Degraded (non-fatal,
// reflected in the result rather than thrown).
package cortexerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error per the propagation policy in the design doc.
type Kind string

const (
	Validation         Kind = "validation"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	InvariantViolation Kind = "invariant_violation"
	Transport          Kind = "transport"
	Degraded           Kind = "degraded"
)

// Error is the single error type surfaced by every package in this module.
// Callers match on Kind via errors.As, e.g.:
//
//	var cerr *cortexerr.Error
//	if errors.As(err, &cerr) && cerr.Kind == cortexerr.NotFound { ... }
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "facts.store"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, cortexerr.AsKind(cortexerr.NotFound)) style
// matching against a bare Kind as well as against another *Error.
func (e *Error) Is(target error) bool {
	if k, ok := target.(kindSentinel); ok {
		return e.Kind == Kind(k)
	}
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

type kindSentinel Kind

// AsKind wraps a Kind so it can be used as an errors.Is target:
// errors.Is(err, cortexerr.AsKind(cortexerr.NotFound)).
func AsKind(k Kind) error { return kindSentinel(k) }

func (k kindSentinel) Error() string { return string(k) }

// New builds an Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// IsKind reports whether err (or something it wraps) is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
