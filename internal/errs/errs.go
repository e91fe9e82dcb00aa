// Package errs defines the error kinds surfaced by the core services.
//
// Every error returned across a package boundary carries a Kind so the
// presentation layers (CLI, REST, MCP) can map it without string matching.
// Kinds compare with errors.Is:
//
//	if errors.Is(err, errs.NotFound) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error.
type Kind string

const (
	Validation         Kind = "validation"
	InvalidState       Kind = "invalid_state"
	InvalidTransition  Kind = "invalid_transition"
	ImmutableVersion   Kind = "immutable_version"
	MissingAnalysis    Kind = "missing_analysis"
	PreconditionFailed Kind = "precondition_failed"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	Internal           Kind = "internal"
)

// Error implements error so a bare Kind can be used as an errors.Is target.
func (k Kind) Error() string { return string(k) }

// Error is a categorised error with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// E builds an Error of the given kind with a formatted message.
func E(kind Kind, op, format string, a ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, a...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err, or Internal if err carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Internal
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
