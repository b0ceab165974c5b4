package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/pocketcal/internal/extraction"
	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/recurrence"
	"github.com/example/pocketcal/internal/store"
	"github.com/example/pocketcal/internal/syncengine"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"title": "is required", "end": "bad"}}
	if got := withFields.Error(); got != "validation failed: end, title" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	base.add("first", "ignored")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected first message to win, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge(nil) to be a no-op, got %v", base.FieldErrors)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: &ValidationError{FieldErrors: map[string]string{"title": "x"}}, want: "validation"},
		{name: "wrapped not found", err: fmt.Errorf("get: %w", persistence.ErrNotFound), want: "not_found"},
		{name: "application not found", err: ErrNotFound, want: "not_found"},
		{name: "rule parse", err: &recurrence.ParseError{Input: "FREQ=HOURLY", Reason: "unsupported"}, want: "parse"},
		{name: "extraction parse", err: &extraction.ParseError{Reason: "no events"}, want: "parse"},
		{name: "concurrency", err: &syncengine.ConcurrencyError{UserID: "u"}, want: "concurrency"},
		{name: "remote", err: &syncengine.RemoteError{Op: "list events", Err: errors.New("503")}, want: "remote"},
		{name: "offline", err: syncengine.ErrOffline, want: "offline"},
		{name: "not authenticated", err: syncengine.ErrNotAuthenticated, want: "unauthorized"},
		{name: "default calendar", err: store.ErrDefaultCalendar, want: "conflict"},
		{name: "bad range", err: store.ErrInvalidRange, want: "validation"},
		{name: "unknown", err: errors.New("disk on fire"), want: "internal"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tt.err); got != tt.want {
				t.Fatalf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
