// Package apperr defines the error taxonomy shared by every domain service.
// Handlers map kinds to HTTP status codes; callers decide retry policy from
// the kind, never from string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation marks malformed input. No state was changed.
	KindValidation
	// KindPrecondition marks a state-machine precondition failure
	// (e.g. approving a non-pending request). No state was changed.
	KindPrecondition
	// KindConflict marks a concurrent transition that raced and lost.
	// Retryable after re-reading state.
	KindConflict
	// KindNotFound marks a missing aggregate.
	KindNotFound
	// KindReference marks a department/location/doctor/user id that does
	// not exist or is inactive.
	KindReference
	// KindSequence marks a sequence allocation failure; the enclosing
	// create operation must not produce any record.
	KindSequence
)

// Error carries a kind alongside the message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed input.
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Precondition reports a failed state-machine precondition.
func Precondition(format string, args ...interface{}) error {
	return &Error{Kind: KindPrecondition, Msg: fmt.Sprintf(format, args...)}
}

// Conflict reports a lost concurrent transition.
func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing aggregate.
func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Msg: resource + " not found"}
}

// ReferenceNotFound reports a missing or inactive reference-data row.
func ReferenceNotFound(kind, id string) error {
	return &Error{Kind: KindReference, Msg: fmt.Sprintf("%s %s not found or inactive", kind, id)}
}

// SequenceUnavailable reports a sequence allocation failure.
func SequenceUnavailable(err error) error {
	return &Error{Kind: KindSequence, Msg: "sequence allocation failed", Err: err}
}

// KindOf extracts the kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindPrecondition:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindReference:
		return http.StatusBadRequest
	case KindSequence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
