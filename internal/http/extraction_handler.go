package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/pocketcal/internal/application"
	"github.com/example/pocketcal/internal/extraction"
	"github.com/example/pocketcal/internal/persistence"
)

type extractionService interface {
	Extract(ctx context.Context, userID, text string) (extraction.Batch, error)
	Session(ctx context.Context, sessionID string) ([]persistence.PendingEvent, error)
	Proposal(ctx context.Context, id string) (persistence.PendingEvent, error)
	Approve(ctx context.Context, id, calendarID string) (persistence.Event, error)
	Reject(ctx context.Context, id string) (persistence.PendingEvent, error)
	PurgeSession(ctx context.Context, sessionID string) error
}

type ExtractionHandler struct {
	service   extractionService
	responder responder
}

func NewExtractionHandler(service extractionService, logger *slog.Logger) *ExtractionHandler {
	return &ExtractionHandler{service: service, responder: newResponder(logger)}
}

// Extract stages the events found in free text.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: map[string]string{"text": "is required"}})
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	batch, err := h.service.Extract(r.Context(), principal.UserID, req.Text)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{
		SessionID: batch.SessionID,
		Events:    toPendingEventDTOs(batch.Events),
		Skipped:   batch.Skipped,
	})
}

// Session lists the proposals of one extraction session.
func (h *ExtractionHandler) Session(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingResourceID)
		return
	}
	events, err := h.ownedSession(r.Context(), sessionID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{SessionID: sessionID, Events: toPendingEventDTOs(events)})
}

// Purge drops every proposal of one extraction session.
func (h *ExtractionHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingResourceID)
		return
	}
	if _, err := h.ownedSession(r.Context(), sessionID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if err := h.service.PurgeSession(r.Context(), sessionID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Approve applies one proposal to the event store.
func (h *ExtractionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingResourceID)
		return
	}
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := h.ownedProposal(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	event, err := h.service.Approve(r.Context(), id, req.CalendarID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

// Reject marks one proposal rejected.
func (h *ExtractionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, ok := ResourceIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingResourceID)
		return
	}
	if err := h.ownedProposal(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	proposal, err := h.service.Reject(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPendingEventDTO(proposal))
}

func (h *ExtractionHandler) ownedSession(ctx context.Context, sessionID string) ([]persistence.PendingEvent, error) {
	principal, _ := PrincipalFromContext(ctx)
	events, err := h.service.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, application.ErrNotFound
	}
	for _, e := range events {
		if e.UserID != principal.UserID {
			return nil, application.ErrNotFound
		}
	}
	return events, nil
}

func (h *ExtractionHandler) ownedProposal(ctx context.Context, id string) error {
	principal, _ := PrincipalFromContext(ctx)
	proposal, err := h.service.Proposal(ctx, id)
	if err != nil {
		return err
	}
	if proposal.UserID != principal.UserID {
		return application.ErrNotFound
	}
	return nil
}

type extractRequest struct {
	Text string `json:"text"`
}

type approveRequest struct {
	CalendarID string `json:"calendar_id"`
}

type sessionResponse struct {
	SessionID string            `json:"session_id"`
	Events    []pendingEventDTO `json:"events"`
	Skipped   int               `json:"skipped,omitempty"`
}
