package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{Validation("bad input"), KindValidation},
		{Precondition("not pending"), KindPrecondition},
		{Conflict("raced"), KindConflict},
		{NotFound("request"), KindNotFound},
		{ReferenceNotFound("department", "abc"), KindReference},
		{SequenceUnavailable(errors.New("down")), KindSequence},
		{errors.New("plain"), KindUnknown},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.kind {
			t.Errorf("KindOf(%v) = %d, want %d", c.err, got, c.kind)
		}
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("approve request: %w", Precondition("status is %q, want pending", "approved"))
	if KindOf(err) != KindPrecondition {
		t.Errorf("kind lost through wrapping")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{Validation("x"), http.StatusBadRequest},
		{Precondition("x"), http.StatusUnprocessableEntity},
		{Conflict("x"), http.StatusConflict},
		{NotFound("x"), http.StatusNotFound},
		{ReferenceNotFound("location", "y"), http.StatusBadRequest},
		{SequenceUnavailable(nil), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.status {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.status)
		}
	}
}

func TestSequenceUnavailable_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := SequenceUnavailable(cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
}
