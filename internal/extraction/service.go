package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/pocketcal/internal/logging"
	"github.com/example/pocketcal/internal/metrics"
	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/recurrence"
	"github.com/example/pocketcal/internal/store"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	// ErrAlreadyReviewed is returned when approving or rejecting a decided proposal.
	ErrAlreadyReviewed = errors.New("extraction: proposal already reviewed")
	// ErrNoCalendar is returned when a CREATE proposal has no calendar to land in.
	ErrNoCalendar = errors.New("extraction: no calendar for new event")
	// ErrIncomplete is returned when a proposal lacks fields its operation needs.
	ErrIncomplete = errors.New("extraction: proposal is incomplete")
)

// EventStore is the slice of the event store approvals write to.
type EventStore interface {
	GetEvent(ctx context.Context, uid string) (persistence.Event, error)
	AddEvent(ctx context.Context, event persistence.Event, opts ...store.WriteOption) (persistence.Event, error)
	UpdateEvent(ctx context.Context, event persistence.Event, opts ...store.WriteOption) (persistence.Event, error)
	DeleteEvent(ctx context.Context, uid string) error
	ListCalendars(ctx context.Context, userID string) ([]persistence.Calendar, error)
}

// Options configures a Service.
type Options struct {
	Location *time.Location
	Now      func() time.Time
	NewID    func() string
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
}

// Service stages extracted proposals and applies the approved ones.
type Service struct {
	extractor Extractor
	pending   persistence.PendingEventRepository
	events    EventStore
	location  *time.Location
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
	metrics   *metrics.Recorder
}

// NewService constructs a Service.
func NewService(extractor Extractor, pending persistence.PendingEventRepository, events EventStore, opts Options) *Service {
	s := &Service{
		extractor: extractor,
		pending:   pending,
		events:    events,
		location:  opts.Location,
		now:       opts.Now,
		newID:     opts.NewID,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

func (s *Service) opLogger(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Operation(ctx, s.logger, "extraction", operation, attrs...)
}

// Batch is the set of proposals staged by one extraction.
type Batch struct {
	SessionID string
	Events    []persistence.PendingEvent
	Skipped   int
}

// Extract sends text to the extraction service and stages the proposals
// under a new session. A malformed response yields a *ParseError and
// nothing is staged.
func (s *Service) Extract(ctx context.Context, userID, text string) (Batch, error) {
	logger := s.opLogger(ctx, "extract", "user_id", userID)
	now := s.now()
	candidates, err := s.extractor.Extract(ctx, Request{
		Text:        text,
		CurrentDate: now.In(s.location),
		Timezone:    s.location.String(),
	})
	if err != nil {
		if IsParseError(err) {
			s.metrics.ExtractionCompleted("parse_error")
			logger.WarnContext(ctx, "extraction response rejected", slog.Any("error", err))
		} else {
			s.metrics.ExtractionCompleted("remote_error")
			logger.ErrorContext(ctx, "extraction failed", slog.Any("error", err))
		}
		return Batch{}, err
	}

	batch := Batch{SessionID: s.newID()}
	for i, candidate := range candidates {
		event, err := s.toPending(candidate)
		if err != nil {
			batch.Skipped++
			logger.InfoContext(ctx, "skipped extracted event", slog.Int("index", i), slog.Any("error", err))
			continue
		}
		event.ID = s.newID()
		event.SessionID = batch.SessionID
		event.UserID = userID
		event.CreatedAt = now
		batch.Events = append(batch.Events, event)
	}

	if len(batch.Events) > 0 {
		if err := s.pending.CreatePendingEvents(ctx, batch.Events); err != nil {
			return Batch{}, err
		}
	}
	result := "success"
	if len(batch.Events) == 0 {
		result = "empty"
	}
	s.metrics.ExtractionCompleted(result)
	logger.InfoContext(ctx, "extraction staged",
		slog.String("session_id", batch.SessionID),
		slog.Int("events", len(batch.Events)),
		slog.Int("skipped", batch.Skipped),
	)
	return batch, nil
}

func (s *Service) toPending(c Candidate) (persistence.PendingEvent, error) {
	op := persistence.OperationType(strings.ToUpper(strings.TrimSpace(c.Action)))
	if op == "" {
		op = persistence.OperationCreate
	}
	switch op {
	case persistence.OperationCreate, persistence.OperationUpdate, persistence.OperationDelete:
	default:
		return persistence.PendingEvent{}, fmt.Errorf("unknown action %q", c.Action)
	}

	event := persistence.PendingEvent{
		Title:         strings.TrimSpace(c.Title),
		Description:   nonEmpty(c.Description),
		Location:      nonEmpty(c.Location),
		Status:        persistence.PendingStatusPending,
		Operation:     op,
		TargetEventID: nonEmpty(c.TargetEventID),
		Scope:         nonEmpty(c.Scope),
	}
	if op == persistence.OperationCreate && event.Title == "" {
		return persistence.PendingEvent{}, errors.New("missing title")
	}
	if op != persistence.OperationCreate && event.TargetEventID == nil {
		return persistence.PendingEvent{}, errors.New("missing targetEventId")
	}
	if c.Confidence != nil {
		event.Confidence = clamp(*c.Confidence)
	}
	if c.IsAllDay != nil {
		event.AllDay = *c.IsAllDay
	}

	if c.Date != nil && strings.TrimSpace(*c.Date) != "" {
		start, end, allDay, err := s.resolveTimes(*c.Date, c.StartTime, c.EndTime, event.AllDay)
		if err != nil {
			return persistence.PendingEvent{}, err
		}
		event.Start, event.End, event.AllDay = &start, &end, allDay
	} else if op == persistence.OperationCreate {
		return persistence.PendingEvent{}, errors.New("missing date")
	}

	if c.Recurrence != nil {
		if rule, ok := RuleFromPhrase(*c.Recurrence); ok {
			event.RRule = &rule
		}
	}
	if c.InstanceDate != nil && strings.TrimSpace(*c.InstanceDate) != "" {
		day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(*c.InstanceDate), s.location)
		if err != nil {
			return persistence.PendingEvent{}, fmt.Errorf("instanceDate: %w", err)
		}
		event.InstanceDate = &day
	}
	return event, nil
}

// resolveTimes builds the proposal's interval. Without a start time the
// proposal becomes all-day; a missing end is one hour after start; an end
// before start rolls to the next day.
func (s *Service) resolveTimes(date string, startText, endText *string, allDay bool) (time.Time, time.Time, bool, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), s.location)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("date: %w", err)
	}
	if allDay || startText == nil || strings.TrimSpace(*startText) == "" {
		return day, day.AddDate(0, 0, 1), true, nil
	}

	start, err := atClock(day, *startText)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("startTime: %w", err)
	}
	end := start.Add(time.Hour)
	if endText != nil && strings.TrimSpace(*endText) != "" {
		end, err = atClock(day, *endText)
		if err != nil {
			return time.Time{}, time.Time{}, false, fmt.Errorf("endTime: %w", err)
		}
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
	}
	return start, end, false, nil
}

func atClock(day time.Time, text string) (time.Time, error) {
	clock, err := time.Parse(timeLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, day.Location()), nil
}

func nonEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Session returns the proposals staged under sessionID.
func (s *Service) Session(ctx context.Context, sessionID string) ([]persistence.PendingEvent, error) {
	return s.pending.ListPendingEvents(ctx, sessionID)
}

// Proposal returns one staged proposal.
func (s *Service) Proposal(ctx context.Context, id string) (persistence.PendingEvent, error) {
	return s.pending.GetPendingEvent(ctx, id)
}

// Reject marks a proposal REJECTED.
func (s *Service) Reject(ctx context.Context, id string) (persistence.PendingEvent, error) {
	proposal, err := s.reviewable(ctx, id)
	if err != nil {
		return persistence.PendingEvent{}, err
	}
	proposal.Status = persistence.PendingStatusRejected
	if err := s.pending.UpdatePendingEvent(ctx, proposal); err != nil {
		return persistence.PendingEvent{}, err
	}
	return proposal, nil
}

// PurgeSession removes every proposal of a session.
func (s *Service) PurgeSession(ctx context.Context, sessionID string) error {
	return s.pending.DeletePendingEvents(ctx, sessionID)
}

func (s *Service) reviewable(ctx context.Context, id string) (persistence.PendingEvent, error) {
	proposal, err := s.pending.GetPendingEvent(ctx, id)
	if err != nil {
		return persistence.PendingEvent{}, err
	}
	if proposal.Status != persistence.PendingStatusPending {
		return persistence.PendingEvent{}, fmt.Errorf("%w: %s is %s", ErrAlreadyReviewed, id, proposal.Status)
	}
	return proposal, nil
}

// Approve applies a proposal to the event store and marks it APPROVED.
// calendarID selects the calendar for CREATE; empty means the user's
// default calendar. The returned event is the created or changed event.
func (s *Service) Approve(ctx context.Context, id, calendarID string) (persistence.Event, error) {
	proposal, err := s.reviewable(ctx, id)
	if err != nil {
		return persistence.Event{}, err
	}

	var event persistence.Event
	switch proposal.Operation {
	case persistence.OperationCreate:
		event, err = s.approveCreate(ctx, proposal, calendarID)
	case persistence.OperationUpdate:
		event, err = s.approveUpdate(ctx, proposal)
	case persistence.OperationDelete:
		event, err = s.approveDelete(ctx, proposal)
	default:
		err = fmt.Errorf("%w: unknown operation %q", ErrIncomplete, proposal.Operation)
	}
	if err != nil {
		return persistence.Event{}, err
	}

	proposal.Status = persistence.PendingStatusApproved
	if err := s.pending.UpdatePendingEvent(ctx, proposal); err != nil {
		return persistence.Event{}, err
	}
	s.opLogger(ctx, "approve", "pending_id", id).InfoContext(ctx, "proposal applied",
		slog.String("operation", string(proposal.Operation)), slog.String("event_uid", event.UID))
	return event, nil
}

func (s *Service) approveCreate(ctx context.Context, p persistence.PendingEvent, calendarID string) (persistence.Event, error) {
	if p.Start == nil || p.End == nil {
		return persistence.Event{}, fmt.Errorf("%w: missing start or end", ErrIncomplete)
	}
	if calendarID == "" {
		calendars, err := s.events.ListCalendars(ctx, p.UserID)
		if err != nil {
			return persistence.Event{}, err
		}
		for _, c := range calendars {
			if c.IsDefault {
				calendarID = c.ID
				break
			}
		}
		if calendarID == "" {
			return persistence.Event{}, ErrNoCalendar
		}
	}
	return s.events.AddEvent(ctx, persistence.Event{
		UserID:      p.UserID,
		CalendarID:  calendarID,
		Summary:     p.Title,
		Description: p.Description,
		Location:    p.Location,
		Start:       *p.Start,
		End:         *p.End,
		AllDay:      p.AllDay,
		RRule:       p.RRule,
	})
}

// singleInstance reports whether a proposal targets one occurrence of a series.
func singleInstance(p persistence.PendingEvent) bool {
	if p.InstanceDate == nil || p.Scope == nil {
		return false
	}
	switch strings.ToLower(*p.Scope) {
	case "this", "single", "instance", "occurrence", "this_event":
		return true
	}
	return false
}

func (s *Service) approveUpdate(ctx context.Context, p persistence.PendingEvent) (persistence.Event, error) {
	target, err := s.events.GetEvent(ctx, *p.TargetEventID)
	if err != nil {
		return persistence.Event{}, err
	}

	if singleInstance(p) && target.RRule != nil {
		// The changed occurrence becomes its own event and is excluded from the series.
		occurrence := s.occurrenceStart(target, *p.InstanceDate)
		exception := target
		exception.UID = ""
		exception.RRule = nil
		exception.ExDate = nil
		exception.Duration = nil
		exception.Start = occurrence
		exception.End = occurrence.Add(target.End.Sub(target.Start))
		exception.OriginalID = &target.UID
		exception.OriginalStart = &occurrence
		applyChanges(&exception, p)

		if _, err := s.events.UpdateEvent(ctx, withExclusion(target, *p.InstanceDate, s.location)); err != nil {
			return persistence.Event{}, err
		}
		return s.events.AddEvent(ctx, exception)
	}

	applyChanges(&target, p)
	return s.events.UpdateEvent(ctx, target)
}

func (s *Service) approveDelete(ctx context.Context, p persistence.PendingEvent) (persistence.Event, error) {
	target, err := s.events.GetEvent(ctx, *p.TargetEventID)
	if err != nil {
		return persistence.Event{}, err
	}
	if singleInstance(p) && target.RRule != nil {
		return s.events.UpdateEvent(ctx, withExclusion(target, *p.InstanceDate, s.location))
	}
	if err := s.events.DeleteEvent(ctx, target.UID); err != nil {
		return persistence.Event{}, err
	}
	return s.events.GetEvent(ctx, target.UID)
}

// occurrenceStart places the series' time of day on the instance date.
func (s *Service) occurrenceStart(series persistence.Event, day time.Time) time.Time {
	start := series.Start.In(s.location)
	day = day.In(s.location)
	return time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), start.Second(), 0, s.location)
}

func applyChanges(event *persistence.Event, p persistence.PendingEvent) {
	if p.Title != "" {
		event.Summary = p.Title
	}
	if p.Description != nil {
		event.Description = p.Description
	}
	if p.Location != nil {
		event.Location = p.Location
	}
	if p.Start != nil && p.End != nil {
		event.Start = *p.Start
		event.End = *p.End
		event.AllDay = p.AllDay
	}
	if p.RRule != nil {
		event.RRule = p.RRule
	}
}

func withExclusion(series persistence.Event, day time.Time, loc *time.Location) persistence.Event {
	entry := recurrence.FormatExclusionLocal(day, loc)
	if series.ExDate == nil || *series.ExDate == "" {
		series.ExDate = &entry
		return series
	}
	combined := *series.ExDate + "," + entry
	series.ExDate = &combined
	return series
}
