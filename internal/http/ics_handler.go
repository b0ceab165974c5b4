package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/pocketcal/internal/application"
	"github.com/example/pocketcal/internal/ics"
	"github.com/example/pocketcal/internal/persistence"
)

const maxImportBytes = 4 << 20

type eventLister interface {
	ListEvents(ctx context.Context, principal application.Principal) ([]persistence.Event, error)
}

// ICSConfig wires the iCalendar endpoints.
type ICSConfig struct {
	Calendars calendarService
	Events    eventLister
	Writer    ics.EventWriter
	Location  *time.Location
	Now       func() time.Time
	Logger    *slog.Logger
}

type ICSHandler struct {
	cfg       ICSConfig
	responder responder
}

func NewICSHandler(cfg ICSConfig) *ICSHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &ICSHandler{cfg: cfg, responder: newResponder(cfg.Logger)}
}

// Export serves the caller's events as text/calendar.
func (h *ICSHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.cfg.Events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	events, err := h.cfg.Events.ListEvents(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if calendarID := r.URL.Query().Get("calendar_id"); calendarID != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.CalendarID == calendarID {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	var buf bytes.Buffer
	if err := ics.Export(&buf, events, h.cfg.Now()); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pocketcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Import reads a VCALENDAR body into ?calendar_id= or the caller's default calendar.
func (h *ICSHandler) Import(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.cfg.Calendars == nil || h.cfg.Writer == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	calendarID, err := h.targetCalendar(r.Context(), principal, r.URL.Query().Get("calendar_id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	imported, err := ics.Parse(http.MaxBytesReader(w, r.Body, maxImportBytes), h.cfg.Location)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	result, err := ics.Import(r.Context(), h.cfg.Writer, principal.UserID, calendarID, imported)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.responder.logger, "ics", "import", "calendar_id", calendarID).InfoContext(r.Context(), "calendar imported",
		"added", result.Added, "updated", result.Updated, "skipped", result.Skipped)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, importResponse{
		CalendarID: calendarID,
		Added:      result.Added,
		Updated:    result.Updated,
		Skipped:    result.Skipped,
	})
}

func (h *ICSHandler) targetCalendar(ctx context.Context, principal application.Principal, calendarID string) (string, error) {
	if calendarID != "" {
		calendar, err := h.cfg.Calendars.GetCalendar(ctx, principal, calendarID)
		if err != nil {
			return "", err
		}
		return calendar.ID, nil
	}
	calendars, err := h.cfg.Calendars.ListCalendars(ctx, principal)
	if err != nil {
		return "", err
	}
	for _, c := range calendars {
		if c.IsDefault {
			return c.ID, nil
		}
	}
	return "", &application.ValidationError{FieldErrors: map[string]string{"calendar_id": "is required when no default calendar exists"}}
}

type importResponse struct {
	CalendarID string `json:"calendar_id"`
	Added      int    `json:"added"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
}
