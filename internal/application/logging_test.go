package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/pocketcal/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContext(t *testing.T) {
	t.Parallel()

	var ctxBuf, baseBuf bytes.Buffer
	ctxLogger := slog.New(slog.NewTextHandler(&ctxBuf, nil))
	base := slog.New(slog.NewTextHandler(&baseBuf, nil))
	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)

	serviceLogger(ctx, base, "event", "create", "event_uid", "e1").Info("hello")

	if baseBuf.Len() != 0 {
		t.Fatalf("expected base logger to stay unused")
	}
	for _, want := range []string{"service=event", "operation=create", "event_uid=e1"} {
		if !strings.Contains(ctxBuf.String(), want) {
			t.Fatalf("expected %q in %q", want, ctxBuf.String())
		}
	}
}

func TestLogFailureLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logFailure(context.Background(), logger, "rejected", &ValidationError{FieldErrors: map[string]string{"title": "x"}})
	if !strings.Contains(buf.String(), "level=INFO") {
		t.Fatalf("expected validation failures at INFO, got %q", buf.String())
	}

	buf.Reset()
	logFailure(context.Background(), logger, "failed", errors.New("disk"))
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "error_kind=internal") {
		t.Fatalf("expected internal failures at ERROR, got %q", buf.String())
	}
}
