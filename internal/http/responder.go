package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/pocketcal/internal/application"
)

var (
	errBadRequestBody    = errors.New("request body is not valid JSON")
	errMissingResourceID = errors.New("resource id is missing from the path")
	errMissingUser       = errors.New("X-User-ID header is required")
	errBadTime           = errors.New("start and end must be RFC 3339 timestamps")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).InfoContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps service errors to statuses through application.ErrorKind.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)
	status := statusForKind(kind)
	response := errorResponse{ErrorCode: kind, Message: err.Error()}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		response.Message = "validation failed"
		response.Errors = vErr.FieldErrors
	}

	logger := r.loggerFor(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "error_kind", kind, "error", err)
		if kind == "internal" {
			response.Message = http.StatusText(status)
		}
	} else {
		logger.InfoContext(ctx, "request rejected", "status", status, "error_kind", kind, "error", err)
	}
	r.writeJSON(ctx, w, status, response)
}

func statusForKind(kind string) int {
	switch kind {
	case "validation", "parse":
		return http.StatusUnprocessableEntity
	case "not_found":
		return http.StatusNotFound
	case "unauthorized":
		return http.StatusForbidden
	case "conflict", "concurrency":
		return http.StatusConflict
	case "offline":
		return http.StatusServiceUnavailable
	case "remote":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
