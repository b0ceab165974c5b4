package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/pocketcal/internal/syncengine"
)

type syncService interface {
	Sync(ctx context.Context, userID string) (syncengine.Result, error)
	Status(ctx context.Context, userID string) (syncengine.Status, error)
}

type SyncHandler struct {
	service   syncService
	responder responder
}

func NewSyncHandler(service syncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{service: service, responder: newResponder(logger)}
}

// Trigger runs a full sync pass for the caller.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.Sync(r.Context(), principal.UserID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSyncResultDTO(result))
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	status, err := h.service.Status(r.Context(), principal.UserID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dto := syncStatusDTO{
		State:        string(status.State),
		LastError:    status.LastError,
		LastSyncTime: status.LastSyncTime,
	}
	if status.LastResult != nil {
		result := toSyncResultDTO(*status.LastResult)
		dto.LastResult = &result
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dto)
}

type syncResultDTO struct {
	CalendarsPushed  int       `json:"calendars_pushed"`
	CalendarsPulled  int       `json:"calendars_pulled"`
	CalendarsDeleted int       `json:"calendars_deleted"`
	EventsPushed     int       `json:"events_pushed"`
	EventsPulled     int       `json:"events_pulled"`
	EventsDeleted    int       `json:"events_deleted"`
	Conflicts        int       `json:"conflicts"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

func toSyncResultDTO(r syncengine.Result) syncResultDTO {
	return syncResultDTO{
		CalendarsPushed:  r.CalendarsPushed,
		CalendarsPulled:  r.CalendarsPulled,
		CalendarsDeleted: r.CalendarsDeleted,
		EventsPushed:     r.EventsPushed,
		EventsPulled:     r.EventsPulled,
		EventsDeleted:    r.EventsDeleted,
		Conflicts:        r.Conflicts,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
}

type syncStatusDTO struct {
	State        string         `json:"state"`
	LastError    string         `json:"last_error,omitempty"`
	LastSyncTime *time.Time     `json:"last_sync_time,omitempty"`
	LastResult   *syncResultDTO `json:"last_result,omitempty"`
}
