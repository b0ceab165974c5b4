package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/pocketcal/internal/extraction"
	"github.com/example/pocketcal/internal/logging"
	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/recurrence"
	"github.com/example/pocketcal/internal/store"
	"github.com/example/pocketcal/internal/syncengine"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable label used for
// logging, metrics and HTTP status mapping.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var ruleErr *recurrence.ParseError
	if errors.As(err, &ruleErr) || extraction.IsParseError(err) {
		return "parse"
	}
	if syncengine.IsConcurrency(err) {
		return "concurrency"
	}

	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, syncengine.ErrNotAuthenticated):
		return "unauthorized"
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInvalidRange), errors.Is(err, extraction.ErrIncomplete), errors.Is(err, extraction.ErrNoCalendar):
		return "validation"
	case errors.Is(err, store.ErrDefaultCalendar), errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, persistence.ErrDuplicate), errors.Is(err, extraction.ErrAlreadyReviewed):
		return "conflict"
	case errors.Is(err, syncengine.ErrOffline):
		return "offline"
	case errors.Is(err, extraction.ErrRemote):
		return "remote"
	}

	var remoteErr *syncengine.RemoteError
	if errors.As(err, &remoteErr) {
		return "remote"
	}
	return "internal"
}

// logFailure logs err at a level matching its kind; user input problems never log at ERROR.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	kind := ErrorKind(err)
	switch kind {
	case "internal", "remote":
		logger.ErrorContext(ctx, msg, "error_kind", kind, "error", err)
	default:
		logger.InfoContext(ctx, msg, "error_kind", kind, "error", err)
	}
}
