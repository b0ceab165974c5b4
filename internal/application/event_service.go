package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/recurrence"
	"github.com/example/pocketcal/internal/store"
)

// EventStore is the part of the event store event operations need.
type EventStore interface {
	calendarGetter
	ListCalendars(ctx context.Context, userID string) ([]persistence.Calendar, error)
	AddEvent(ctx context.Context, event persistence.Event, opts ...store.WriteOption) (persistence.Event, error)
	UpdateEvent(ctx context.Context, event persistence.Event, opts ...store.WriteOption) (persistence.Event, error)
	DeleteEvent(ctx context.Context, uid string) error
	GetEvent(ctx context.Context, uid string) (persistence.Event, error)
	ListEvents(ctx context.Context, userID string) ([]persistence.Event, error)
	Instances(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]recurrence.Instance, error)
}

// EventService validates event requests before they reach the store.
type EventService struct {
	events EventStore
	logger *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(events EventStore, logger *slog.Logger) *EventService {
	return &EventService{events: events, logger: defaultLogger(logger)}
}

// ListEvents returns the principal's live event definitions.
func (s *EventService) ListEvents(ctx context.Context, principal Principal) ([]persistence.Event, error) {
	if s == nil || s.events == nil {
		return nil, fmt.Errorf("EventService is not configured")
	}
	return s.events.ListEvents(ctx, principal.UserID)
}

// GetEvent returns one event owned by the principal.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, uid string) (persistence.Event, error) {
	if s == nil || s.events == nil {
		return persistence.Event{}, fmt.Errorf("EventService is not configured")
	}
	return s.ownedEvent(ctx, principal, uid)
}

// CreateEvent validates input and adds the event as PENDING.
func (s *EventService) CreateEvent(ctx context.Context, principal Principal, input EventInput) (persistence.Event, error) {
	if s == nil || s.events == nil {
		return persistence.Event{}, fmt.Errorf("EventService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, "event", "create")

	vErr := &ValidationError{}
	rule := validateEvent(input, vErr)
	calendarID, err := s.resolveCalendar(ctx, principal, input.CalendarID, vErr)
	if err != nil {
		return persistence.Event{}, err
	}
	if vErr.HasErrors() {
		logFailure(ctx, logger, "event rejected", vErr)
		return persistence.Event{}, vErr
	}

	event := applyInput(persistence.Event{UserID: principal.UserID}, input, rule)
	event.CalendarID = calendarID
	created, err := s.events.AddEvent(ctx, event)
	if err != nil {
		logFailure(ctx, logger, "event create failed", err)
		return persistence.Event{}, err
	}
	logger.InfoContext(ctx, "event created", "event_uid", created.UID, "recurring", created.RRule != nil)
	return created, nil
}

// UpdateEvent replaces the editable fields of an owned event.
func (s *EventService) UpdateEvent(ctx context.Context, principal Principal, uid string, input EventInput) (persistence.Event, error) {
	if s == nil || s.events == nil {
		return persistence.Event{}, fmt.Errorf("EventService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, "event", "update", "event_uid", uid)

	existing, err := s.ownedEvent(ctx, principal, uid)
	if err != nil {
		return persistence.Event{}, err
	}

	vErr := &ValidationError{}
	rule := validateEvent(input, vErr)
	calendarID := existing.CalendarID
	if input.CalendarID != "" && input.CalendarID != existing.CalendarID {
		if calendarID, err = s.resolveCalendar(ctx, principal, input.CalendarID, vErr); err != nil {
			return persistence.Event{}, err
		}
	}
	if vErr.HasErrors() {
		logFailure(ctx, logger, "event rejected", vErr)
		return persistence.Event{}, vErr
	}

	updated := applyInput(existing, input, rule)
	updated.CalendarID = calendarID
	saved, err := s.events.UpdateEvent(ctx, updated)
	if err != nil {
		logFailure(ctx, logger, "event update failed", err)
		return persistence.Event{}, err
	}
	return saved, nil
}

// DeleteEvent soft-deletes an owned event.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, uid string) error {
	if s == nil || s.events == nil {
		return fmt.Errorf("EventService is not configured")
	}
	if _, err := s.ownedEvent(ctx, principal, uid); err != nil {
		return err
	}
	return s.events.DeleteEvent(ctx, uid)
}

// Instances expands the principal's events over [start, end).
func (s *EventService) Instances(ctx context.Context, principal Principal, start, end time.Time) ([]recurrence.Instance, error) {
	if s == nil || s.events == nil {
		return nil, fmt.Errorf("EventService is not configured")
	}
	vErr := &ValidationError{}
	if start.IsZero() {
		vErr.add("start", "is required")
	}
	if end.IsZero() {
		vErr.add("end", "is required")
	} else if !end.After(start) {
		vErr.add("end", "must be after start")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}
	return s.events.Instances(ctx, principal.UserID, start, end)
}

func (s *EventService) ownedEvent(ctx context.Context, principal Principal, uid string) (persistence.Event, error) {
	event, err := s.events.GetEvent(ctx, uid)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Event{}, ErrNotFound
	}
	if err != nil {
		return persistence.Event{}, err
	}
	if event.UserID != principal.UserID || event.SyncStatus == persistence.SyncStatusDeleted {
		return persistence.Event{}, ErrNotFound
	}
	return event, nil
}

// resolveCalendar returns the target calendar id, falling back to the
// user's default. Unknown calendars are recorded on vErr.
func (s *EventService) resolveCalendar(ctx context.Context, principal Principal, calendarID string, vErr *ValidationError) (string, error) {
	if calendarID == "" {
		calendars, err := s.events.ListCalendars(ctx, principal.UserID)
		if err != nil {
			return "", err
		}
		for _, c := range calendars {
			if c.IsDefault {
				return c.ID, nil
			}
		}
		vErr.add("calendar_id", "is required when no default calendar exists")
		return "", nil
	}

	if _, err := ownedCalendar(ctx, s.events, principal, calendarID); err != nil {
		if errors.Is(err, ErrNotFound) {
			vErr.add("calendar_id", "unknown calendar")
			return "", nil
		}
		return "", err
	}
	return calendarID, nil
}

func applyInput(event persistence.Event, input EventInput, rule *string) persistence.Event {
	event.Summary = strings.TrimSpace(input.Title)
	event.Description = input.Description
	event.Location = input.Location
	event.Start = input.Start
	event.End = input.End
	event.Duration = input.Duration
	event.AllDay = input.AllDay
	event.RRule = rule
	event.ExDate = input.ExDate
	event.Color = input.Color
	return event
}
