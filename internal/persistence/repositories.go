package persistence

import (
	"context"
	"time"
)

// CalendarFilter narrows calendar queries. Soft-deleted rows are skipped
// unless IncludeDeleted is set or SyncStatus selects them.
type CalendarFilter struct {
	UserID         string
	SyncStatus     *SyncStatus
	IncludeDeleted bool
}

// CalendarRepository stores calendars.
type CalendarRepository interface {
	UpsertCalendar(ctx context.Context, calendar Calendar) error
	GetCalendar(ctx context.Context, id string) (Calendar, error)
	ListCalendars(ctx context.Context, filter CalendarFilter) ([]Calendar, error)
	DeleteCalendar(ctx context.Context, id string) error
}

// EventFilter narrows event queries. Soft-deleted rows are skipped unless
// IncludeDeleted is set or SyncStatus selects them.
type EventFilter struct {
	UserID         string
	CalendarID     *string
	SyncStatus     *SyncStatus
	IncludeDeleted bool
	StartsBefore   *time.Time
}

// EventRepository stores event definitions.
type EventRepository interface {
	UpsertEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, uid string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, uid string) error
}

// PendingEventRepository stages extracted events per session.
type PendingEventRepository interface {
	CreatePendingEvents(ctx context.Context, events []PendingEvent) error
	GetPendingEvent(ctx context.Context, id string) (PendingEvent, error)
	ListPendingEvents(ctx context.Context, sessionID string) ([]PendingEvent, error)
	UpdatePendingEvent(ctx context.Context, event PendingEvent) error
	DeletePendingEvents(ctx context.Context, sessionID string) error
}

// SyncStateRepository records per-user sync bookkeeping.
type SyncStateRepository interface {
	GetLastSyncTime(ctx context.Context, userID string) (time.Time, error)
	SetLastSyncTime(ctx context.Context, userID string, at time.Time) error
}

// Storage aggregates every repository a backend provides.
type Storage interface {
	CalendarRepository
	EventRepository
	PendingEventRepository
	SyncStateRepository
	Migrate(ctx context.Context) error
	Close() error
}

// Matches reports whether c passes filter.
func (f CalendarFilter) Matches(c Calendar) bool {
	if f.UserID != "" && c.UserID != f.UserID {
		return false
	}
	if f.SyncStatus != nil {
		return c.SyncStatus == *f.SyncStatus
	}
	return f.IncludeDeleted || c.SyncStatus != SyncStatusDeleted
}

// Matches reports whether e passes filter.
func (f EventFilter) Matches(e Event) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.CalendarID != nil && e.CalendarID != *f.CalendarID {
		return false
	}
	if f.StartsBefore != nil && !e.Start.Before(*f.StartsBefore) {
		return false
	}
	if f.SyncStatus != nil {
		return e.SyncStatus == *f.SyncStatus
	}
	return f.IncludeDeleted || e.SyncStatus != SyncStatusDeleted
}

// StatusPtr returns a pointer to s for use in filters.
func StatusPtr(s SyncStatus) *SyncStatus {
	return &s
}
