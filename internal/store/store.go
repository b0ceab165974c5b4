// Package store is the local event repository. Every mutation stamps the
// modification time, marks the entity PENDING and drops the instance cache.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/pocketcal/internal/logging"
	"github.com/example/pocketcal/internal/metrics"
	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/recurrence"
)

// DefaultCacheSize is the number of query windows kept in the instance cache.
const DefaultCacheSize = 32

var (
	// ErrDefaultCalendar is returned when deleting a user's default calendar.
	ErrDefaultCalendar = errors.New("store: default calendar cannot be deleted")
	// ErrAlreadyExists is returned when adding an entity whose ID is taken.
	ErrAlreadyExists = errors.New("store: entity already exists")
	// ErrNotDeleted is returned when purging an entity that was not soft-deleted.
	ErrNotDeleted = errors.New("store: entity is not marked deleted")
	// ErrInvalidRange is returned for instance queries with end <= start.
	ErrInvalidRange = errors.New("store: range end must be after range start")
	// ErrModified is returned by a write made with IfUnmodified when the
	// entity changed after the caller read it.
	ErrModified = errors.New("store: entity was modified since it was read")
)

// StampPrecision is the granularity of every modification time the store
// writes. PostgreSQL keeps microseconds, so finer stamps would not survive a
// round trip through a remote store.
const StampPrecision = time.Microsecond

// Repository is the persistence the store writes through.
type Repository interface {
	persistence.CalendarRepository
	persistence.EventRepository
}

// Options configures a Store.
type Options struct {
	Generator *recurrence.Generator
	CacheSize int
	Now       func() time.Time
	NewID     func() string
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
}

type rangeKey struct {
	userID string
	start  int64
	end    int64
}

// Store owns calendar and event mutation and the instance cache. A single
// mutex serialises writers and cache access.
type Store struct {
	mu        sync.Mutex
	repo      Repository
	generator *recurrence.Generator
	cache     *lru.Cache[rangeKey, []recurrence.Instance]
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
	metrics   *metrics.Recorder
}

// New constructs a Store over repo.
func New(repo Repository, opts Options) (*Store, error) {
	if repo == nil {
		return nil, errors.New("store: repository is required")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[rangeKey, []recurrence.Instance](size)
	if err != nil {
		return nil, fmt.Errorf("store: create instance cache: %w", err)
	}
	s := &Store{
		repo:      repo,
		generator: opts.Generator,
		cache:     cache,
		now:       opts.Now,
		newID:     opts.NewID,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if s.generator == nil {
		s.generator = recurrence.NewGenerator(nil, 0)
	}
	clock := s.now
	if clock == nil {
		clock = time.Now
	}
	s.now = func() time.Time { return clock().Truncate(StampPrecision) }
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// WriteOption adjusts how a mutation is stamped.
type WriteOption func(*writeOptions)

type writeOptions struct {
	status     *persistence.SyncStatus
	unmodified *time.Time
}

// WithSyncStatus writes the entity with status and keeps the caller's
// timestamps untouched. Only the sync engine uses this, to record SYNCED
// copies of remote state.
func WithSyncStatus(status persistence.SyncStatus) WriteOption {
	return func(o *writeOptions) {
		o.status = &status
	}
}

// IfUnmodified makes an update conditional on the stored entity still carrying
// the modification time at (LastModified for events, UpdatedAt for
// calendars). A newer local edit fails the write with ErrModified and is left
// untouched.
func IfUnmodified(at time.Time) WriteOption {
	return func(o *writeOptions) {
		o.unmodified = &at
	}
}

func (o writeOptions) modified(current time.Time) bool {
	return o.unmodified != nil && !current.Equal(*o.unmodified)
}

func collect(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// stamp returns a modification time strictly after prev.
func (s *Store) stamp(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

func (s *Store) invalidateLocked() {
	s.cache.Purge()
}

func (s *Store) opLogger(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Operation(ctx, s.logger, "store", operation, attrs...)
}

// --- Calendars ---

// AddCalendar stores a new calendar. An empty ID is generated.
func (s *Store) AddCalendar(ctx context.Context, calendar persistence.Calendar, opts ...WriteOption) (persistence.Calendar, error) {
	o := collect(opts)
	s.mu.Lock()
	defer s.mu.Unlock()

	if calendar.ID == "" {
		calendar.ID = s.newID()
	} else if _, err := s.repo.GetCalendar(ctx, calendar.ID); err == nil {
		return persistence.Calendar{}, fmt.Errorf("%w: calendar %s", ErrAlreadyExists, calendar.ID)
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Calendar{}, err
	}

	if o.status != nil {
		calendar.SyncStatus = *o.status
	} else {
		now := s.now()
		calendar.CreatedAt = now
		calendar.UpdatedAt = now
		calendar.SyncStatus = persistence.SyncStatusPending
	}
	if err := s.repo.UpsertCalendar(ctx, calendar); err != nil {
		return persistence.Calendar{}, err
	}
	s.invalidateLocked()
	s.opLogger(ctx, "add_calendar", "calendar_id", calendar.ID).DebugContext(ctx, "calendar added")
	return calendar, nil
}

// UpdateCalendar replaces an existing calendar.
func (s *Store) UpdateCalendar(ctx context.Context, calendar persistence.Calendar, opts ...WriteOption) (persistence.Calendar, error) {
	o := collect(opts)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetCalendar(ctx, calendar.ID)
	if err != nil {
		return persistence.Calendar{}, err
	}
	if o.modified(existing.UpdatedAt) {
		return persistence.Calendar{}, fmt.Errorf("%w: calendar %s", ErrModified, calendar.ID)
	}
	if o.status != nil {
		calendar.SyncStatus = *o.status
	} else {
		calendar.UserID = existing.UserID
		calendar.CreatedAt = existing.CreatedAt
		calendar.UpdatedAt = s.stamp(existing.UpdatedAt)
		calendar.SyncStatus = persistence.SyncStatusPending
	}
	if err := s.repo.UpsertCalendar(ctx, calendar); err != nil {
		return persistence.Calendar{}, err
	}
	s.invalidateLocked()
	return calendar, nil
}

// DeleteCalendar soft-deletes a calendar and the events it contains.
func (s *Store) DeleteCalendar(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	calendar, err := s.repo.GetCalendar(ctx, id)
	if err != nil {
		return err
	}
	if calendar.IsDefault {
		return ErrDefaultCalendar
	}

	events, err := s.repo.ListEvents(ctx, persistence.EventFilter{CalendarID: &id})
	if err != nil {
		return err
	}
	for _, event := range events {
		event.LastModified = s.stamp(event.LastModified)
		event.SyncStatus = persistence.SyncStatusDeleted
		if err := s.repo.UpsertEvent(ctx, event); err != nil {
			return err
		}
	}

	calendar.UpdatedAt = s.stamp(calendar.UpdatedAt)
	calendar.SyncStatus = persistence.SyncStatusDeleted
	if err := s.repo.UpsertCalendar(ctx, calendar); err != nil {
		return err
	}
	s.invalidateLocked()
	s.opLogger(ctx, "delete_calendar", "calendar_id", id).InfoContext(ctx, "calendar marked deleted", slog.Int("events", len(events)))
	return nil
}

// PurgeCalendar physically removes a soft-deleted calendar and its events.
func (s *Store) PurgeCalendar(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	calendar, err := s.repo.GetCalendar(ctx, id)
	if err != nil {
		return err
	}
	if calendar.SyncStatus != persistence.SyncStatusDeleted {
		return fmt.Errorf("%w: calendar %s", ErrNotDeleted, id)
	}
	if err := s.repo.DeleteCalendar(ctx, id); err != nil {
		return err
	}
	s.invalidateLocked()
	return nil
}

// GetCalendar returns a calendar by ID, including soft-deleted ones.
func (s *Store) GetCalendar(ctx context.Context, id string) (persistence.Calendar, error) {
	return s.repo.GetCalendar(ctx, id)
}

// ListCalendars returns the live calendars of a user.
func (s *Store) ListCalendars(ctx context.Context, userID string) ([]persistence.Calendar, error) {
	return s.repo.ListCalendars(ctx, persistence.CalendarFilter{UserID: userID})
}

// ListCalendarsByStatus returns the calendars of a user in status.
func (s *Store) ListCalendarsByStatus(ctx context.Context, userID string, status persistence.SyncStatus) ([]persistence.Calendar, error) {
	return s.repo.ListCalendars(ctx, persistence.CalendarFilter{UserID: userID, SyncStatus: &status})
}

// --- Events ---

// AddEvent stores a new event. An empty UID is generated.
func (s *Store) AddEvent(ctx context.Context, event persistence.Event, opts ...WriteOption) (persistence.Event, error) {
	o := collect(opts)
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.UID == "" {
		event.UID = s.newID()
	} else if _, err := s.repo.GetEvent(ctx, event.UID); err == nil {
		return persistence.Event{}, fmt.Errorf("%w: event %s", ErrAlreadyExists, event.UID)
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Event{}, err
	}

	if o.status != nil {
		event.SyncStatus = *o.status
	} else {
		event.LastModified = s.now()
		event.SyncStatus = persistence.SyncStatusPending
	}
	if err := s.repo.UpsertEvent(ctx, event); err != nil {
		return persistence.Event{}, err
	}
	s.invalidateLocked()
	s.opLogger(ctx, "add_event", "event_uid", event.UID).DebugContext(ctx, "event added")
	return event, nil
}

// UpdateEvent replaces an existing event. The UID and owner are immutable.
func (s *Store) UpdateEvent(ctx context.Context, event persistence.Event, opts ...WriteOption) (persistence.Event, error) {
	o := collect(opts)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetEvent(ctx, event.UID)
	if err != nil {
		return persistence.Event{}, err
	}
	if o.modified(existing.LastModified) {
		return persistence.Event{}, fmt.Errorf("%w: event %s", ErrModified, event.UID)
	}
	if o.status != nil {
		event.SyncStatus = *o.status
	} else {
		event.UserID = existing.UserID
		event.LastModified = s.stamp(existing.LastModified)
		event.SyncStatus = persistence.SyncStatusPending
	}
	if err := s.repo.UpsertEvent(ctx, event); err != nil {
		return persistence.Event{}, err
	}
	s.invalidateLocked()
	return event, nil
}

// DeleteEvent soft-deletes an event so the deletion can be pushed later.
func (s *Store) DeleteEvent(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.repo.GetEvent(ctx, uid)
	if err != nil {
		return err
	}
	event.LastModified = s.stamp(event.LastModified)
	event.SyncStatus = persistence.SyncStatusDeleted
	if err := s.repo.UpsertEvent(ctx, event); err != nil {
		return err
	}
	s.invalidateLocked()
	s.opLogger(ctx, "delete_event", "event_uid", uid).DebugContext(ctx, "event marked deleted")
	return nil
}

// PurgeEvent physically removes a soft-deleted event.
func (s *Store) PurgeEvent(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.repo.GetEvent(ctx, uid)
	if err != nil {
		return err
	}
	if event.SyncStatus != persistence.SyncStatusDeleted {
		return fmt.Errorf("%w: event %s", ErrNotDeleted, uid)
	}
	if err := s.repo.DeleteEvent(ctx, uid); err != nil {
		return err
	}
	s.invalidateLocked()
	return nil
}

// GetEvent returns an event by UID, including soft-deleted ones.
func (s *Store) GetEvent(ctx context.Context, uid string) (persistence.Event, error) {
	return s.repo.GetEvent(ctx, uid)
}

// ListEvents returns the live events of a user ordered by start.
func (s *Store) ListEvents(ctx context.Context, userID string) ([]persistence.Event, error) {
	return s.repo.ListEvents(ctx, persistence.EventFilter{UserID: userID})
}

// ListEventsByStatus returns the events of a user in status.
func (s *Store) ListEventsByStatus(ctx context.Context, userID string, status persistence.SyncStatus) ([]persistence.Event, error) {
	return s.repo.ListEvents(ctx, persistence.EventFilter{UserID: userID, SyncStatus: &status})
}

// --- Instances ---

// Instances expands the live events of a user over [rangeStart, rangeEnd)
// and returns the occurrences sorted by start time. Results are cached per
// window until the next mutation.
func (s *Store) Instances(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]recurrence.Instance, error) {
	if !rangeEnd.After(rangeStart) {
		return nil, ErrInvalidRange
	}
	key := rangeKey{userID: userID, start: rangeStart.UnixNano(), end: rangeEnd.UnixNano()}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheLookup(true)
		return cloneInstances(cached), nil
	}
	s.metrics.CacheLookup(false)

	events, err := s.repo.ListEvents(ctx, persistence.EventFilter{UserID: userID, StartsBefore: &rangeEnd})
	if err != nil {
		return nil, err
	}
	defs := make([]recurrence.Definition, 0, len(events))
	for _, event := range events {
		defs = append(defs, Definition(event))
	}
	instances := s.generator.GenerateAll(defs, rangeStart, rangeEnd)
	s.cache.Add(key, instances)
	return cloneInstances(instances), nil
}

// Definition maps a stored event onto the generator's input.
func Definition(event persistence.Event) recurrence.Definition {
	return recurrence.Definition{
		UID:         event.UID,
		Title:       event.Summary,
		Description: deref(event.Description),
		Location:    deref(event.Location),
		Color:       deref(event.Color),
		AllDay:      event.AllDay,
		Start:       event.Start,
		End:         event.End,
		Duration:    event.Duration,
		RRule:       event.RRule,
		ExDate:      event.ExDate,
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneInstances(src []recurrence.Instance) []recurrence.Instance {
	if src == nil {
		return []recurrence.Instance{}
	}
	return append([]recurrence.Instance(nil), src...)
}
