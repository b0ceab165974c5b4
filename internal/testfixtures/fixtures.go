package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/pocketcal/internal/persistence"
)

var (
	calendarCounter uint64
	eventCounter    uint64
	pendingCounter  uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// DefaultUserID is the owner assigned to fixtures unless overridden.
const DefaultUserID = "user-001"

// --------------------------- Calendar fixtures ---------------------------

// CalendarFixture represents a deterministic calendar record.
type CalendarFixture struct {
	ID         string
	UserID     string
	Name       string
	Color      string
	IsDefault  bool
	IsVisible  bool
	SyncStatus persistence.SyncStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CalendarOption configures the generated calendar fixture.
type CalendarOption func(*CalendarFixture)

// NewCalendarFixture returns a deterministic calendar fixture with optional overrides.
func NewCalendarFixture(opts ...CalendarOption) CalendarFixture {
	idx := atomic.AddUint64(&calendarCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := CalendarFixture{
		ID:         fmt.Sprintf("calendar-%03d", idx),
		UserID:     DefaultUserID,
		Name:       fmt.Sprintf("Calendar %03d", idx),
		Color:      "#3366FF",
		IsVisible:  true,
		SyncStatus: persistence.SyncStatusPending,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCalendarID overrides the generated calendar ID.
func WithCalendarID(id string) CalendarOption {
	return func(f *CalendarFixture) {
		f.ID = id
	}
}

// WithCalendarUser overrides the owner.
func WithCalendarUser(userID string) CalendarOption {
	return func(f *CalendarFixture) {
		f.UserID = userID
	}
}

// WithCalendarName overrides the display name.
func WithCalendarName(name string) CalendarOption {
	return func(f *CalendarFixture) {
		f.Name = name
	}
}

// WithCalendarDefault marks the calendar as the user's default.
func WithCalendarDefault() CalendarOption {
	return func(f *CalendarFixture) {
		f.IsDefault = true
	}
}

// WithCalendarStatus overrides the sync status.
func WithCalendarStatus(status persistence.SyncStatus) CalendarOption {
	return func(f *CalendarFixture) {
		f.SyncStatus = status
	}
}

// WithCalendarUpdatedAt overrides the last update time.
func WithCalendarUpdatedAt(t time.Time) CalendarOption {
	return func(f *CalendarFixture) {
		f.UpdatedAt = t
	}
}

// Persistence returns the fixture as a persistence.Calendar.
func (f CalendarFixture) Persistence() persistence.Calendar {
	return persistence.Calendar{
		ID:         f.ID,
		UserID:     f.UserID,
		Name:       f.Name,
		Color:      f.Color,
		IsDefault:  f.IsDefault,
		IsVisible:  f.IsVisible,
		SyncStatus: f.SyncStatus,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// ---------------------------- Event fixtures -----------------------------

// EventFixture represents a deterministic event definition.
type EventFixture struct {
	UID          string
	UserID       string
	CalendarID   string
	Summary      string
	Description  *string
	Location     *string
	Start        time.Time
	End          time.Time
	Duration     *time.Duration
	AllDay       bool
	RRule        *string
	ExDate       *string
	Color        *string
	LastModified time.Time
	SyncStatus   persistence.SyncStatus
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a deterministic one-hour event fixture with optional overrides.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := EventFixture{
		UID:          fmt.Sprintf("event-%03d", idx),
		UserID:       DefaultUserID,
		CalendarID:   "calendar-default",
		Summary:      fmt.Sprintf("Event %03d", idx),
		Start:        start,
		End:          start.Add(time.Hour),
		LastModified: referenceTime,
		SyncStatus:   persistence.SyncStatusPending,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventUID overrides the generated UID.
func WithEventUID(uid string) EventOption {
	return func(f *EventFixture) {
		f.UID = uid
	}
}

// WithEventUser overrides the owner.
func WithEventUser(userID string) EventOption {
	return func(f *EventFixture) {
		f.UserID = userID
	}
}

// WithEventCalendar overrides the calendar ID.
func WithEventCalendar(calendarID string) EventOption {
	return func(f *EventFixture) {
		f.CalendarID = calendarID
	}
}

// WithEventSummary overrides the title.
func WithEventSummary(summary string) EventOption {
	return func(f *EventFixture) {
		f.Summary = summary
	}
}

// WithEventDescription sets the optional description.
func WithEventDescription(description string) EventOption {
	return func(f *EventFixture) {
		f.Description = &description
	}
}

// WithEventLocation sets the optional location.
func WithEventLocation(location string) EventOption {
	return func(f *EventFixture) {
		f.Location = &location
	}
}

// WithEventStartEnd sets the start and end times.
func WithEventStartEnd(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventDuration sets the explicit duration.
func WithEventDuration(d time.Duration) EventOption {
	return func(f *EventFixture) {
		f.Duration = &d
	}
}

// WithEventAllDay marks the event as all-day.
func WithEventAllDay() EventOption {
	return func(f *EventFixture) {
		f.AllDay = true
	}
}

// WithEventRRule sets the recurrence rule text.
func WithEventRRule(rule string) EventOption {
	return func(f *EventFixture) {
		f.RRule = &rule
	}
}

// WithEventExDate sets the EXDATE field.
func WithEventExDate(exdate string) EventOption {
	return func(f *EventFixture) {
		f.ExDate = &exdate
	}
}

// WithEventColor sets the optional color.
func WithEventColor(color string) EventOption {
	return func(f *EventFixture) {
		f.Color = &color
	}
}

// WithEventLastModified overrides the modification time.
func WithEventLastModified(t time.Time) EventOption {
	return func(f *EventFixture) {
		f.LastModified = t
	}
}

// WithEventStatus overrides the sync status.
func WithEventStatus(status persistence.SyncStatus) EventOption {
	return func(f *EventFixture) {
		f.SyncStatus = status
	}
}

// Persistence returns the fixture as a persistence.Event.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		UID:          f.UID,
		UserID:       f.UserID,
		CalendarID:   f.CalendarID,
		Summary:      f.Summary,
		Description:  copyStringPtr(f.Description),
		Location:     copyStringPtr(f.Location),
		Start:        f.Start,
		End:          f.End,
		Duration:     copyDurationPtr(f.Duration),
		AllDay:       f.AllDay,
		RRule:        copyStringPtr(f.RRule),
		ExDate:       copyStringPtr(f.ExDate),
		Color:        copyStringPtr(f.Color),
		LastModified: f.LastModified,
		SyncStatus:   f.SyncStatus,
	}
}

// ------------------------- Pending event fixtures ------------------------

// PendingEventFixture represents a deterministic extracted event.
type PendingEventFixture struct {
	ID            string
	SessionID     string
	UserID        string
	Title         string
	Start         *time.Time
	End           *time.Time
	AllDay        bool
	RRule         *string
	Confidence    float64
	Status        persistence.PendingStatus
	Operation     persistence.OperationType
	TargetEventID *string
	CreatedAt     time.Time
}

// PendingEventOption configures the generated pending event fixture.
type PendingEventOption func(*PendingEventFixture)

// NewPendingEventFixture returns a deterministic CREATE proposal with optional overrides.
func NewPendingEventFixture(opts ...PendingEventOption) PendingEventFixture {
	idx := atomic.AddUint64(&pendingCounter, 1)
	start := referenceTime.Add(24 * time.Hour)
	end := start.Add(time.Hour)
	fixture := PendingEventFixture{
		ID:         fmt.Sprintf("pending-%03d", idx),
		SessionID:  "session-001",
		UserID:     DefaultUserID,
		Title:      fmt.Sprintf("Proposal %03d", idx),
		Start:      &start,
		End:        &end,
		Confidence: 0.9,
		Status:     persistence.PendingStatusPending,
		Operation:  persistence.OperationCreate,
		CreatedAt:  referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPendingSession overrides the session ID.
func WithPendingSession(sessionID string) PendingEventOption {
	return func(f *PendingEventFixture) {
		f.SessionID = sessionID
	}
}

// WithPendingOperation sets the proposed operation and its target event.
func WithPendingOperation(op persistence.OperationType, targetEventID string) PendingEventOption {
	return func(f *PendingEventFixture) {
		f.Operation = op
		if targetEventID != "" {
			f.TargetEventID = &targetEventID
		}
	}
}

// WithPendingRRule sets the proposed recurrence rule.
func WithPendingRRule(rule string) PendingEventOption {
	return func(f *PendingEventFixture) {
		f.RRule = &rule
	}
}

// WithPendingTimes overrides the proposed start and end. Nil clears them.
func WithPendingTimes(start, end *time.Time) PendingEventOption {
	return func(f *PendingEventFixture) {
		f.Start = start
		f.End = end
	}
}

// Persistence returns the fixture as a persistence.PendingEvent.
func (f PendingEventFixture) Persistence() persistence.PendingEvent {
	return persistence.PendingEvent{
		ID:            f.ID,
		SessionID:     f.SessionID,
		UserID:        f.UserID,
		Title:         f.Title,
		Start:         copyTimePtr(f.Start),
		End:           copyTimePtr(f.End),
		AllDay:        f.AllDay,
		RRule:         copyStringPtr(f.RRule),
		Confidence:    f.Confidence,
		Status:        f.Status,
		Operation:     f.Operation,
		TargetEventID: copyStringPtr(f.TargetEventID),
		CreatedAt:     f.CreatedAt,
	}
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

func copyDurationPtr(src *time.Duration) *time.Duration {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}
