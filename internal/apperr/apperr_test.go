package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("empty_message", "message must not be empty"), 400},
		{Unauthorized("unauthorized", "user required"), 401},
		{NotFound("session_not_found", "no session"), 404},
		{Conflict("session_completed", "already done"), 409},
		{Oracle("oracle_unreachable", errors.New("boom")), 502},
		{OracleTimeout("oracle_timeout", errors.New("deadline")), 504},
		{errors.New("plain"), 500},
		{nil, 500},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestKindOf_UnwrapsWrappedErrors(t *testing.T) {
	inner := NotFound("scenario_not_found", "scenario missing")
	wrapped := fmt.Errorf("loading catalog: %w", inner)

	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("expected not_found through wrapping, got %q", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Fatalf("IsKind should see through wrapping")
	}
	if CodeOf(wrapped) != "scenario_not_found" {
		t.Fatalf("unexpected code %q", CodeOf(wrapped))
	}
}

func TestCodeOf_FallsBackToInternal(t *testing.T) {
	if CodeOf(errors.New("plain")) != "internal" {
		t.Fatalf("expected internal for plain errors")
	}
	if CodeOf(&Error{Kind: KindConflict}) != "internal" {
		t.Fatalf("expected internal for empty code")
	}
}

func TestErrorMessage(t *testing.T) {
	e := Validation("empty_message", "message must not be empty")
	if e.Error() != "message must not be empty" {
		t.Fatalf("unexpected message %q", e.Error())
	}
	if (&Error{Code: "only_code"}).Error() != "only_code" {
		t.Fatalf("expected code fallback")
	}
	if (&Error{Kind: KindInternal}).Error() != "internal" {
		t.Fatalf("expected kind fallback")
	}
}
