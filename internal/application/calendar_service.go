package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/store"
)

// CalendarStore is the part of the event store calendar operations need.
type CalendarStore interface {
	AddCalendar(ctx context.Context, calendar persistence.Calendar, opts ...store.WriteOption) (persistence.Calendar, error)
	UpdateCalendar(ctx context.Context, calendar persistence.Calendar, opts ...store.WriteOption) (persistence.Calendar, error)
	DeleteCalendar(ctx context.Context, id string) error
	GetCalendar(ctx context.Context, id string) (persistence.Calendar, error)
	ListCalendars(ctx context.Context, userID string) ([]persistence.Calendar, error)
}

const defaultCalendarColor = "#3366FF"

// CalendarService validates calendar requests before they reach the store.
type CalendarService struct {
	calendars CalendarStore
	logger    *slog.Logger
}

// NewCalendarService wires dependencies for calendar operations.
func NewCalendarService(calendars CalendarStore, logger *slog.Logger) *CalendarService {
	return &CalendarService{calendars: calendars, logger: defaultLogger(logger)}
}

// ListCalendars returns the principal's live calendars.
func (s *CalendarService) ListCalendars(ctx context.Context, principal Principal) ([]persistence.Calendar, error) {
	if s == nil || s.calendars == nil {
		return nil, fmt.Errorf("CalendarService is not configured")
	}
	return s.calendars.ListCalendars(ctx, principal.UserID)
}

// GetCalendar returns one calendar owned by the principal.
func (s *CalendarService) GetCalendar(ctx context.Context, principal Principal, id string) (persistence.Calendar, error) {
	if s == nil || s.calendars == nil {
		return persistence.Calendar{}, fmt.Errorf("CalendarService is not configured")
	}
	return ownedCalendar(ctx, s.calendars, principal, id)
}

// CreateCalendar adds a calendar. The user's first calendar becomes the default.
func (s *CalendarService) CreateCalendar(ctx context.Context, principal Principal, input CalendarInput) (persistence.Calendar, error) {
	if s == nil || s.calendars == nil {
		return persistence.Calendar{}, fmt.Errorf("CalendarService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, "calendar", "create")

	vErr := &ValidationError{}
	validateCalendar(input, vErr)
	if vErr.HasErrors() {
		logFailure(ctx, logger, "calendar rejected", vErr)
		return persistence.Calendar{}, vErr
	}

	existing, err := s.calendars.ListCalendars(ctx, principal.UserID)
	if err != nil {
		return persistence.Calendar{}, err
	}
	calendar := persistence.Calendar{
		UserID:    principal.UserID,
		Name:      strings.TrimSpace(input.Name),
		Color:     input.Color,
		IsDefault: len(existing) == 0,
		IsVisible: input.IsVisible == nil || *input.IsVisible,
	}
	if calendar.Color == "" {
		calendar.Color = defaultCalendarColor
	}

	created, err := s.calendars.AddCalendar(ctx, calendar)
	if err != nil {
		logFailure(ctx, logger, "calendar create failed", err)
		return persistence.Calendar{}, err
	}
	logger.InfoContext(ctx, "calendar created", "calendar_id", created.ID, "default", created.IsDefault)
	return created, nil
}

// UpdateCalendar replaces the editable fields of an owned calendar.
func (s *CalendarService) UpdateCalendar(ctx context.Context, principal Principal, id string, input CalendarInput) (persistence.Calendar, error) {
	if s == nil || s.calendars == nil {
		return persistence.Calendar{}, fmt.Errorf("CalendarService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, "calendar", "update", "calendar_id", id)

	existing, err := ownedCalendar(ctx, s.calendars, principal, id)
	if err != nil {
		return persistence.Calendar{}, err
	}

	vErr := &ValidationError{}
	validateCalendar(input, vErr)
	if vErr.HasErrors() {
		logFailure(ctx, logger, "calendar rejected", vErr)
		return persistence.Calendar{}, vErr
	}

	updated := existing
	updated.Name = strings.TrimSpace(input.Name)
	if input.Color != "" {
		updated.Color = input.Color
	}
	if input.IsVisible != nil {
		updated.IsVisible = *input.IsVisible
	}
	return s.calendars.UpdateCalendar(ctx, updated)
}

// DeleteCalendar soft-deletes an owned calendar and its events.
func (s *CalendarService) DeleteCalendar(ctx context.Context, principal Principal, id string) error {
	if s == nil || s.calendars == nil {
		return fmt.Errorf("CalendarService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, "calendar", "delete", "calendar_id", id)

	if _, err := ownedCalendar(ctx, s.calendars, principal, id); err != nil {
		return err
	}
	if err := s.calendars.DeleteCalendar(ctx, id); err != nil {
		logFailure(ctx, logger, "calendar delete failed", err)
		return err
	}
	logger.InfoContext(ctx, "calendar deleted")
	return nil
}

type calendarGetter interface {
	GetCalendar(ctx context.Context, id string) (persistence.Calendar, error)
}

// ownedCalendar hides calendars of other users and soft-deleted ones behind ErrNotFound.
func ownedCalendar(ctx context.Context, calendars calendarGetter, principal Principal, id string) (persistence.Calendar, error) {
	calendar, err := calendars.GetCalendar(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Calendar{}, ErrNotFound
	}
	if err != nil {
		return persistence.Calendar{}, err
	}
	if calendar.UserID != principal.UserID || calendar.SyncStatus == persistence.SyncStatusDeleted {
		return persistence.Calendar{}, ErrNotFound
	}
	return calendar, nil
}
