package syncengine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/store"
)

// The fast paths push a single user edit without a full pass. Each one calls
// the remote store first and only then updates the local copy, so a remote
// failure leaves local state unchanged and the call can simply be retried.

// PushCalendar uploads one calendar and marks it SYNCED. A calendar edited
// while the upload was in flight stays PENDING for the next pass.
func (e *Engine) PushCalendar(ctx context.Context, id string) error {
	calendar, err := e.local.GetCalendar(ctx, id)
	if err != nil {
		return err
	}
	if !e.authenticated(ctx, calendar.UserID) {
		return ErrNotAuthenticated
	}
	if err := e.remote.UpsertCalendar(ctx, calendar); err != nil {
		e.opLogger(ctx, "push_calendar", "calendar_id", id).WarnContext(ctx, "remote upsert failed", slog.Any("error", err))
		return remoteErr("upsert calendar", err)
	}
	if _, err := e.local.UpdateCalendar(ctx, calendar, store.WithSyncStatus(persistence.SyncStatusSynced), store.IfUnmodified(calendar.UpdatedAt)); err != nil {
		if errors.Is(err, store.ErrModified) {
			e.opLogger(ctx, "push_calendar", "calendar_id", id).InfoContext(ctx, "calendar edited during push, left pending")
			return nil
		}
		return err
	}
	e.metrics.EntitiesSynced("push", "calendar", 1)
	return nil
}

// PushEvent uploads one event and marks it SYNCED. An event edited while the
// upload was in flight stays PENDING for the next pass.
func (e *Engine) PushEvent(ctx context.Context, uid string) error {
	event, err := e.local.GetEvent(ctx, uid)
	if err != nil {
		return err
	}
	if !e.authenticated(ctx, event.UserID) {
		return ErrNotAuthenticated
	}
	if err := e.remote.UpsertEvent(ctx, event); err != nil {
		e.opLogger(ctx, "push_event", "event_uid", uid).WarnContext(ctx, "remote upsert failed", slog.Any("error", err))
		return remoteErr("upsert event", err)
	}
	if _, err := e.local.UpdateEvent(ctx, event, store.WithSyncStatus(persistence.SyncStatusSynced), store.IfUnmodified(event.LastModified)); err != nil {
		if errors.Is(err, store.ErrModified) {
			e.opLogger(ctx, "push_event", "event_uid", uid).InfoContext(ctx, "event edited during push, left pending")
			return nil
		}
		return err
	}
	e.metrics.EntitiesSynced("push", "event", 1)
	return nil
}

// DeleteCalendar removes a calendar remotely, then locally with its events.
// Default calendars are refused before any remote call.
func (e *Engine) DeleteCalendar(ctx context.Context, id string) error {
	calendar, err := e.local.GetCalendar(ctx, id)
	if err != nil {
		return err
	}
	if calendar.IsDefault {
		return store.ErrDefaultCalendar
	}
	if !e.authenticated(ctx, calendar.UserID) {
		return ErrNotAuthenticated
	}
	if err := e.remote.DeleteCalendar(ctx, calendar.UserID, id); err != nil {
		e.opLogger(ctx, "delete_calendar", "calendar_id", id).WarnContext(ctx, "remote delete failed", slog.Any("error", err))
		return remoteErr("delete calendar", err)
	}
	if calendar.SyncStatus != persistence.SyncStatusDeleted {
		if err := e.local.DeleteCalendar(ctx, id); err != nil {
			return err
		}
	}
	if err := e.local.PurgeCalendar(ctx, id); err != nil {
		return err
	}
	e.metrics.EntitiesSynced("delete", "calendar", 1)
	return nil
}

// DeleteEvent removes an event remotely, then locally.
func (e *Engine) DeleteEvent(ctx context.Context, uid string) error {
	event, err := e.local.GetEvent(ctx, uid)
	if err != nil {
		return err
	}
	if !e.authenticated(ctx, event.UserID) {
		return ErrNotAuthenticated
	}
	if err := e.remote.DeleteEvent(ctx, event.UserID, uid); err != nil {
		e.opLogger(ctx, "delete_event", "event_uid", uid).WarnContext(ctx, "remote delete failed", slog.Any("error", err))
		return remoteErr("delete event", err)
	}
	if event.SyncStatus != persistence.SyncStatusDeleted {
		if err := e.local.DeleteEvent(ctx, uid); err != nil {
			return err
		}
	}
	if err := e.local.PurgeEvent(ctx, uid); err != nil {
		return err
	}
	e.metrics.EntitiesSynced("delete", "event", 1)
	return nil
}
