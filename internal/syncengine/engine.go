// Package syncengine reconciles the local store with the remote store.
package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/pocketcal/internal/logging"
	"github.com/example/pocketcal/internal/metrics"
	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/store"
)

// State is the engine's position in the sync state machine. SUCCESS and ERROR
// describe the last finished pass and are held until the next pass starts or
// connectivity changes; OFFLINE returns to IDLE when the network comes back.
type State string

const (
	StateIdle    State = "IDLE"
	StateSyncing State = "SYNCING"
	StateSuccess State = "SUCCESS"
	StateError   State = "ERROR"
	StateOffline State = "OFFLINE"
)

// Result counts what one sync pass moved.
type Result struct {
	CalendarsPushed  int
	CalendarsPulled  int
	CalendarsDeleted int
	EventsPushed     int
	EventsPulled     int
	EventsDeleted    int
	Conflicts        int
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Status is a snapshot of the engine for one user.
type Status struct {
	State        State
	LastError    string
	LastSyncTime *time.Time
	LastResult   *Result
}

// Options configures an Engine.
type Options struct {
	Auth         Authenticator
	Connectivity Connectivity
	SyncState    persistence.SyncStateRepository
	Now          func() time.Time
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
}

// Engine runs at most one sync pass at a time.
type Engine struct {
	local        Store
	remote       RemoteStore
	auth         Authenticator
	connectivity Connectivity
	syncState    persistence.SyncStateRepository
	now          func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Recorder

	inFlight atomic.Bool

	mu         sync.RWMutex
	state      State
	lastError  string
	lastResult *Result
}

// New constructs an Engine.
func New(local Store, remote RemoteStore, opts Options) (*Engine, error) {
	if local == nil {
		return nil, errors.New("sync: local store is required")
	}
	if remote == nil {
		return nil, errors.New("sync: remote store is required")
	}
	e := &Engine{
		local:        local,
		remote:       remote,
		auth:         opts.Auth,
		connectivity: opts.Connectivity,
		syncState:    opts.SyncState,
		now:          opts.Now,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		state:        StateIdle,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e, nil
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(state State, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.lastError = message
}

// SetConnectivity moves an idle engine to OFFLINE and back. A running pass
// is never interrupted.
func (e *Engine) SetConnectivity(online bool) {
	if e.inFlight.Load() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case !online && e.state != StateSyncing:
		e.state = StateOffline
	case online && e.state == StateOffline:
		e.state = StateIdle
		e.lastError = ""
	}
}

// WatchConnectivity applies connectivity updates until ctx ends or updates closes.
func (e *Engine) WatchConnectivity(ctx context.Context, updates <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-updates:
			if !ok {
				return
			}
			e.SetConnectivity(online)
		}
	}
}

// Status reports the engine state and the user's last successful sync.
func (e *Engine) Status(ctx context.Context, userID string) (Status, error) {
	e.mu.RLock()
	status := Status{State: e.state, LastError: e.lastError}
	if e.lastResult != nil {
		result := *e.lastResult
		status.LastResult = &result
	}
	e.mu.RUnlock()

	if e.syncState == nil {
		return status, nil
	}
	at, err := e.syncState.GetLastSyncTime(ctx, userID)
	switch {
	case err == nil:
		status.LastSyncTime = &at
	case !errors.Is(err, persistence.ErrNotFound):
		return status, err
	}
	return status, nil
}

func (e *Engine) opLogger(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Operation(ctx, e.logger, "sync", operation, attrs...)
}

func (e *Engine) authenticated(ctx context.Context, userID string) bool {
	return e.auth == nil || e.auth.Authenticated(ctx, userID)
}

// Sync runs a full reconciliation pass for userID.
//
// Calendars are pushed and pulled before any event is touched. The first
// failing step aborts the pass; changes already written locally are kept,
// and a later pass re-derives the same pending set.
func (e *Engine) Sync(ctx context.Context, userID string) (Result, error) {
	if !e.authenticated(ctx, userID) {
		return Result{}, ErrNotAuthenticated
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return Result{}, &ConcurrencyError{UserID: userID}
	}
	defer e.inFlight.Store(false)

	logger := e.opLogger(ctx, "sync", "user_id", userID)
	if e.connectivity != nil && !e.connectivity.Connected(ctx) {
		e.setState(StateOffline, ErrOffline.Error())
		logger.InfoContext(ctx, "sync skipped while offline")
		e.metrics.SyncCompleted("offline", 0)
		return Result{}, ErrOffline
	}

	e.setState(StateSyncing, "")
	result := Result{StartedAt: e.now()}
	steps := []struct {
		name string
		run  func(context.Context, string, *Result, *slog.Logger) error
	}{
		{"push_calendars", e.pushCalendars},
		{"pull_calendars", e.pullCalendars},
		{"push_events", e.pushEvents},
		{"remove_calendars", e.removeDeletedCalendars},
		{"pull_events", e.pullEvents},
	}
	for _, step := range steps {
		logger.DebugContext(ctx, "sync phase started", slog.String("phase", step.name))
		if err := step.run(ctx, userID, &result, logger); err != nil {
			result.FinishedAt = e.now()
			e.finish(StateError, err.Error(), result)
			e.metrics.SyncCompleted("error", result.FinishedAt.Sub(result.StartedAt))
			logger.ErrorContext(ctx, "sync failed", slog.String("phase", step.name), slog.Any("error", err))
			return result, err
		}
	}

	result.FinishedAt = e.now()
	if e.syncState != nil {
		if err := e.syncState.SetLastSyncTime(ctx, userID, result.FinishedAt); err != nil {
			e.finish(StateError, err.Error(), result)
			e.metrics.SyncCompleted("error", result.FinishedAt.Sub(result.StartedAt))
			logger.ErrorContext(ctx, "failed to record sync time", slog.Any("error", err))
			return result, err
		}
	}
	e.finish(StateSuccess, "", result)
	e.metrics.SyncCompleted("success", result.FinishedAt.Sub(result.StartedAt))
	logger.InfoContext(ctx, "sync completed",
		slog.Int("calendars_pushed", result.CalendarsPushed),
		slog.Int("calendars_pulled", result.CalendarsPulled),
		slog.Int("events_pushed", result.EventsPushed),
		slog.Int("events_pulled", result.EventsPulled),
		slog.Int("events_deleted", result.EventsDeleted),
		slog.Int("conflicts", result.Conflicts),
	)
	return result, nil
}

func (e *Engine) finish(state State, message string, result Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.lastError = message
	e.lastResult = &result
}

func (e *Engine) pushCalendars(ctx context.Context, userID string, result *Result, logger *slog.Logger) error {
	pending, err := e.local.ListCalendarsByStatus(ctx, userID, persistence.SyncStatusPending)
	if err != nil {
		return err
	}
	defer func() { e.metrics.EntitiesSynced("push", "calendar", result.CalendarsPushed) }()
	for _, calendar := range pending {
		if err := e.remote.UpsertCalendar(ctx, calendar); err != nil {
			return remoteErr("upsert calendar", err)
		}
		if _, err := e.local.UpdateCalendar(ctx, calendar, store.WithSyncStatus(persistence.SyncStatusSynced), store.IfUnmodified(calendar.UpdatedAt)); err != nil {
			if errors.Is(err, store.ErrModified) {
				logger.InfoContext(ctx, "calendar edited during push, left pending", slog.String("calendar_id", calendar.ID))
				continue
			}
			return err
		}
		result.CalendarsPushed++
	}
	return nil
}

func (e *Engine) pullCalendars(ctx context.Context, userID string, result *Result, logger *slog.Logger) error {
	remote, err := e.remote.ListCalendars(ctx, userID)
	if err != nil {
		return remoteErr("list calendars", err)
	}
	defer func() { e.metrics.EntitiesSynced("pull", "calendar", result.CalendarsPulled) }()
	for _, calendar := range remote {
		local, err := e.local.GetCalendar(ctx, calendar.ID)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			if _, err := e.local.AddCalendar(ctx, calendar, store.WithSyncStatus(persistence.SyncStatusSynced)); err != nil {
				return err
			}
			result.CalendarsPulled++
			continue
		case err != nil:
			return err
		}
		if local.SyncStatus == persistence.SyncStatusDeleted || !newer(calendar.UpdatedAt, local.UpdatedAt) {
			continue
		}
		if _, err := e.local.UpdateCalendar(ctx, calendar, store.WithSyncStatus(persistence.SyncStatusSynced), store.IfUnmodified(local.UpdatedAt)); err != nil {
			if errors.Is(err, store.ErrModified) {
				logger.InfoContext(ctx, "calendar edited during pull, kept local copy", slog.String("calendar_id", calendar.ID))
				continue
			}
			return err
		}
		result.CalendarsPulled++
	}
	return nil
}

func (e *Engine) pushEvents(ctx context.Context, userID string, result *Result, logger *slog.Logger) error {
	pending, err := e.local.ListEventsByStatus(ctx, userID, persistence.SyncStatusPending)
	if err != nil {
		return err
	}
	defer func() {
		e.metrics.EntitiesSynced("push", "event", result.EventsPushed)
		e.metrics.EntitiesSynced("delete", "event", result.EventsDeleted)
	}()
	for _, event := range pending {
		if err := e.remote.UpsertEvent(ctx, event); err != nil {
			return remoteErr("upsert event", err)
		}
		if _, err := e.local.UpdateEvent(ctx, event, store.WithSyncStatus(persistence.SyncStatusSynced), store.IfUnmodified(event.LastModified)); err != nil {
			if errors.Is(err, store.ErrModified) {
				logger.InfoContext(ctx, "event edited during push, left pending", slog.String("event_uid", event.UID))
				continue
			}
			return err
		}
		result.EventsPushed++
	}

	deleted, err := e.local.ListEventsByStatus(ctx, userID, persistence.SyncStatusDeleted)
	if err != nil {
		return err
	}
	for _, event := range deleted {
		if err := e.remote.DeleteEvent(ctx, userID, event.UID); err != nil {
			return remoteErr("delete event", err)
		}
		if err := e.local.PurgeEvent(ctx, event.UID); err != nil {
			return err
		}
		result.EventsDeleted++
	}
	return nil
}

// removeDeletedCalendars runs after event deletions so that the events of a
// deleted calendar reach the remote store before the local cascade purges them.
func (e *Engine) removeDeletedCalendars(ctx context.Context, userID string, result *Result, _ *slog.Logger) error {
	deleted, err := e.local.ListCalendarsByStatus(ctx, userID, persistence.SyncStatusDeleted)
	if err != nil {
		return err
	}
	defer func() { e.metrics.EntitiesSynced("delete", "calendar", result.CalendarsDeleted) }()
	for _, calendar := range deleted {
		if err := e.remote.DeleteCalendar(ctx, userID, calendar.ID); err != nil {
			return remoteErr("delete calendar", err)
		}
		if err := e.local.PurgeCalendar(ctx, calendar.ID); err != nil {
			return err
		}
		result.CalendarsDeleted++
	}
	return nil
}

func (e *Engine) pullEvents(ctx context.Context, userID string, result *Result, logger *slog.Logger) error {
	remote, err := e.remote.ListEvents(ctx, userID)
	if err != nil {
		return remoteErr("list events", err)
	}
	defer func() { e.metrics.EntitiesSynced("pull", "event", result.EventsPulled) }()
	for _, event := range remote {
		local, err := e.local.GetEvent(ctx, event.UID)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			if _, err := e.local.AddEvent(ctx, event, store.WithSyncStatus(persistence.SyncStatusSynced)); err != nil {
				return err
			}
			result.EventsPulled++
			continue
		case err != nil:
			return err
		}

		switch {
		case local.SyncStatus == persistence.SyncStatusDeleted:
			// Deletion has not reached the remote yet.
		case newer(event.LastModified, local.LastModified):
			if local.SyncStatus == persistence.SyncStatusPending {
				logger.InfoContext(ctx, "kept unpushed local edit", slog.String("event_uid", event.UID))
				continue
			}
			if _, err := e.local.UpdateEvent(ctx, event, store.WithSyncStatus(persistence.SyncStatusSynced), store.IfUnmodified(local.LastModified)); err != nil {
				if errors.Is(err, store.ErrModified) {
					logger.InfoContext(ctx, "event edited during pull, kept local copy", slog.String("event_uid", event.UID))
					continue
				}
				return err
			}
			result.EventsPulled++
		case newer(local.LastModified, event.LastModified) && local.SyncStatus == persistence.SyncStatusSynced:
			logger.WarnContext(ctx, "sync conflict, keeping local copy",
				slog.String("event_uid", event.UID),
				slog.Time("local_last_modified", local.LastModified),
				slog.Time("remote_last_modified", event.LastModified),
			)
			e.metrics.ConflictKept()
			result.Conflicts++
		}
	}
	return nil
}

// newer reports whether a is later than b at store.StampPrecision. Remote
// stores may drop finer digits, which must not read as a newer edit.
func newer(a, b time.Time) bool {
	return a.Truncate(store.StampPrecision).After(b.Truncate(store.StampPrecision))
}
