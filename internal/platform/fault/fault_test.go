package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassification(t *testing.T) {
	v := Validationf("stock %d out of range", -1)
	if !IsValidation(v) || IsState(v) || IsTransient(v) {
		t.Errorf("expected validation classification, got %v", v)
	}

	s := Statef("occurrence already Taken")
	if !IsState(s) {
		t.Errorf("expected state classification, got %v", s)
	}

	tr := Transient("storage unavailable", errors.New("connection refused"))
	if !IsTransient(tr) {
		t.Errorf("expected transient classification, got %v", tr)
	}
}

func TestWrappedClassificationSurvives(t *testing.T) {
	inner := Validationf("duplicate dose times")
	wrapped := fmt.Errorf("create schedule: %w", inner)
	if !IsValidation(wrapped) {
		t.Errorf("classification lost through wrapping: %v", wrapped)
	}
	if Reason(wrapped) != "duplicate dose times" {
		t.Errorf("unexpected reason %q", Reason(wrapped))
	}
}

func TestTransientUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	tr := Transient("notification sink unreachable", cause)
	if !errors.Is(tr, cause) {
		t.Error("expected transient error to unwrap to its cause")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validationf("bad input"), 400},
		{Statef("already terminal"), 409},
		{NotFoundf("no such schedule"), 404},
		{Transient("db down", errors.New("refused")), 503},
		{errors.New("plain"), 500},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestReasonPlainError(t *testing.T) {
	if got := Reason(errors.New("boom")); got != "boom" {
		t.Errorf("Reason() = %q, want boom", got)
	}
}
