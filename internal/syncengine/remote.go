package syncengine

import (
	"context"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/store"
)

// RemoteStore is the server-side copy of a user's calendars and events.
// Upserts update an existing record or insert a new one.
type RemoteStore interface {
	ListCalendars(ctx context.Context, userID string) ([]persistence.Calendar, error)
	UpsertCalendar(ctx context.Context, calendar persistence.Calendar) error
	DeleteCalendar(ctx context.Context, userID, id string) error
	ListEvents(ctx context.Context, userID string) ([]persistence.Event, error)
	UpsertEvent(ctx context.Context, event persistence.Event) error
	DeleteEvent(ctx context.Context, userID, uid string) error
}

// Authenticator reports whether remote calls may be made for a user.
type Authenticator interface {
	Authenticated(ctx context.Context, userID string) bool
}

// Connectivity reports whether the network is currently usable.
type Connectivity interface {
	Connected(ctx context.Context) bool
}

// LocalStore is the slice of the event store the engine drives.
type LocalStore interface {
	ListCalendarsByStatus(ctx context.Context, userID string, status persistence.SyncStatus) ([]persistence.Calendar, error)
	GetCalendar(ctx context.Context, id string) (persistence.Calendar, error)
	ListEventsByStatus(ctx context.Context, userID string, status persistence.SyncStatus) ([]persistence.Event, error)
	GetEvent(ctx context.Context, uid string) (persistence.Event, error)
}

// Store is the local repository the engine reconciles. Writes made with
// store.WithSyncStatus keep the remote timestamps.
type Store interface {
	LocalStore
	AddCalendar(ctx context.Context, calendar persistence.Calendar, opts ...store.WriteOption) (persistence.Calendar, error)
	UpdateCalendar(ctx context.Context, calendar persistence.Calendar, opts ...store.WriteOption) (persistence.Calendar, error)
	DeleteCalendar(ctx context.Context, id string) error
	PurgeCalendar(ctx context.Context, id string) error
	AddEvent(ctx context.Context, event persistence.Event, opts ...store.WriteOption) (persistence.Event, error)
	UpdateEvent(ctx context.Context, event persistence.Event, opts ...store.WriteOption) (persistence.Event, error)
	DeleteEvent(ctx context.Context, uid string) error
	PurgeEvent(ctx context.Context, uid string) error
}
