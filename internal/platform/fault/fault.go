// Package fault defines the engine's error taxonomy: validation failures,
// state conflicts, and transient infrastructure errors. Synchronous callers
// get validation and state errors back directly; transient errors are logged
// by background sweeps and retried on the next pass.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

const (
	KindValidation Kind = iota
	KindState
	KindNotFound
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindNotFound:
		return "not-found"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

// Error is a classified engine error with a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf reports malformed or out-of-range input.
func Validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// Statef reports an operation that conflicts with the current lifecycle
// state, such as re-logging a terminal dose occurrence.
func Statef(format string, args ...interface{}) error {
	return &Error{Kind: KindState, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundf reports a lookup that matched nothing.
func NotFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

// Transient wraps an infrastructure error that a background sweep may retry
// on its next pass.
func Transient(reason string, err error) error {
	return &Error{Kind: KindTransient, Reason: reason, Err: err}
}

func is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

func IsValidation(err error) bool { return is(err, KindValidation) }
func IsState(err error) bool      { return is(err, KindState) }
func IsNotFound(err error) bool   { return is(err, KindNotFound) }
func IsTransient(err error) bool  { return is(err, KindTransient) }

// HTTPStatus maps a classified error to the status code its API response
// carries. Unclassified errors map to 500.
func HTTPStatus(err error) int {
	var fe *Error
	if !errors.As(err, &fe) {
		return 500
	}
	switch fe.Kind {
	case KindValidation:
		return 400
	case KindState:
		return 409
	case KindNotFound:
		return 404
	case KindTransient:
		return 503
	}
	return 500
}

// Reason returns the human-readable reason of a classified error, or the
// plain error text for unclassified ones.
func Reason(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return err.Error()
}
