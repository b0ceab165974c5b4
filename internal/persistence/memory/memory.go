package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/pocketcal/internal/persistence"
)

// Storage is a map-backed persistence layer used by tests and ephemeral runs.
type Storage struct {
	mu        sync.RWMutex
	calendars map[string]persistence.Calendar
	events    map[string]persistence.Event
	pending   map[string]persistence.PendingEvent
	lastSync  map[string]time.Time
}

var _ persistence.Storage = (*Storage)(nil)

// Open returns a new Storage instance.
func Open() *Storage {
	return &Storage{
		calendars: make(map[string]persistence.Calendar),
		events:    make(map[string]persistence.Event),
		pending:   make(map[string]persistence.PendingEvent),
		lastSync:  make(map[string]time.Time),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Migrate initialises the storage. No-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// --- CalendarRepository implementation ---

// UpsertCalendar inserts or replaces a calendar.
func (s *Storage) UpsertCalendar(ctx context.Context, calendar persistence.Calendar) error {
	if calendar.ID == "" {
		return fmt.Errorf("memory: calendar id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calendars[calendar.ID] = calendar
	return nil
}

// GetCalendar retrieves a calendar by ID.
func (s *Storage) GetCalendar(ctx context.Context, id string) (persistence.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calendar, ok := s.calendars[id]
	if !ok {
		return persistence.Calendar{}, persistence.ErrNotFound
	}
	return calendar, nil
}

// ListCalendars returns calendars passing filter ordered by CreatedAt ascending.
func (s *Storage) ListCalendars(ctx context.Context, filter persistence.CalendarFilter) ([]persistence.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calendars := make([]persistence.Calendar, 0, len(s.calendars))
	for _, calendar := range s.calendars {
		if filter.Matches(calendar) {
			calendars = append(calendars, calendar)
		}
	}

	sort.Slice(calendars, func(i, j int) bool {
		if calendars[i].CreatedAt.Equal(calendars[j].CreatedAt) {
			return calendars[i].ID < calendars[j].ID
		}
		return calendars[i].CreatedAt.Before(calendars[j].CreatedAt)
	})
	return calendars, nil
}

// DeleteCalendar physically removes a calendar and its events.
func (s *Storage) DeleteCalendar(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calendars[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.calendars, id)
	for uid, event := range s.events {
		if event.CalendarID == id {
			delete(s.events, uid)
		}
	}
	return nil
}

// --- EventRepository implementation ---

// UpsertEvent inserts or replaces an event.
func (s *Storage) UpsertEvent(ctx context.Context, event persistence.Event) error {
	if event.UID == "" {
		return fmt.Errorf("memory: event uid is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.UID] = cloneEvent(event)
	return nil
}

// GetEvent retrieves an event by UID.
func (s *Storage) GetEvent(ctx context.Context, uid string) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[uid]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return cloneEvent(event), nil
}

// ListEvents returns events passing filter ordered by start time.
func (s *Storage) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]persistence.Event, 0, len(s.events))
	for _, event := range s.events {
		if filter.Matches(event) {
			events = append(events, cloneEvent(event))
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].UID < events[j].UID
		}
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

// DeleteEvent physically removes an event.
func (s *Storage) DeleteEvent(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[uid]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.events, uid)
	return nil
}

// --- PendingEventRepository implementation ---

// CreatePendingEvents stores a batch of staged events.
func (s *Storage) CreatePendingEvents(ctx context.Context, events []persistence.PendingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range events {
		if _, ok := s.pending[event.ID]; ok {
			return fmt.Errorf("memory: pending event %s: %w", event.ID, persistence.ErrDuplicate)
		}
	}
	for _, event := range events {
		s.pending[event.ID] = clonePending(event)
	}
	return nil
}

// GetPendingEvent retrieves a staged event by ID.
func (s *Storage) GetPendingEvent(ctx context.Context, id string) (persistence.PendingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.pending[id]
	if !ok {
		return persistence.PendingEvent{}, persistence.ErrNotFound
	}
	return clonePending(event), nil
}

// ListPendingEvents returns the staged events of a session ordered by CreatedAt.
func (s *Storage) ListPendingEvents(ctx context.Context, sessionID string) ([]persistence.PendingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []persistence.PendingEvent
	for _, event := range s.pending {
		if event.SessionID == sessionID {
			events = append(events, clonePending(event))
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

// UpdatePendingEvent replaces an existing staged event.
func (s *Storage) UpdatePendingEvent(ctx context.Context, event persistence.PendingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[event.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.pending[event.ID] = clonePending(event)
	return nil
}

// DeletePendingEvents removes every staged event of a session.
func (s *Storage) DeletePendingEvents(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, event := range s.pending {
		if event.SessionID == sessionID {
			delete(s.pending, id)
		}
	}
	return nil
}

// --- SyncStateRepository implementation ---

// GetLastSyncTime returns the last successful sync time of a user.
func (s *Storage) GetLastSyncTime(ctx context.Context, userID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.lastSync[userID]
	if !ok {
		return time.Time{}, persistence.ErrNotFound
	}
	return at, nil
}

// SetLastSyncTime records the last successful sync time of a user.
func (s *Storage) SetLastSyncTime(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSync[userID] = at
	return nil
}

func cloneEvent(e persistence.Event) persistence.Event {
	e.Description = copyStringPtr(e.Description)
	e.Location = copyStringPtr(e.Location)
	e.RRule = copyStringPtr(e.RRule)
	e.RDate = copyStringPtr(e.RDate)
	e.ExDate = copyStringPtr(e.ExDate)
	e.ExRule = copyStringPtr(e.ExRule)
	e.Color = copyStringPtr(e.Color)
	e.OriginalID = copyStringPtr(e.OriginalID)
	if e.Duration != nil {
		d := *e.Duration
		e.Duration = &d
	}
	if e.OriginalStart != nil {
		t := *e.OriginalStart
		e.OriginalStart = &t
	}
	return e
}

func clonePending(p persistence.PendingEvent) persistence.PendingEvent {
	p.Description = copyStringPtr(p.Description)
	p.Location = copyStringPtr(p.Location)
	p.RRule = copyStringPtr(p.RRule)
	p.TargetEventID = copyStringPtr(p.TargetEventID)
	p.Scope = copyStringPtr(p.Scope)
	p.Start = copyTimePtr(p.Start)
	p.End = copyTimePtr(p.End)
	p.InstanceDate = copyTimePtr(p.InstanceDate)
	return p
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}
