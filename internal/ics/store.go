package ics

import (
	"context"
	"errors"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/store"
)

// EventWriter is the slice of the event store an import writes to.
type EventWriter interface {
	GetEvent(ctx context.Context, uid string) (persistence.Event, error)
	AddEvent(ctx context.Context, event persistence.Event, opts ...store.WriteOption) (persistence.Event, error)
	UpdateEvent(ctx context.Context, event persistence.Event, opts ...store.WriteOption) (persistence.Event, error)
}

// ImportResult counts what an import changed.
type ImportResult struct {
	Added   int
	Updated int
	Skipped int
}

// Import writes parsed events into calendarID for userID. Events whose UID
// already exists are updated in place; all writes go through the store so
// they are stamped PENDING for the next sync.
func Import(ctx context.Context, target EventWriter, userID, calendarID string, imported Imported) (ImportResult, error) {
	result := ImportResult{Skipped: len(imported.Skipped)}
	for _, event := range imported.Events {
		event.UserID = userID
		event.CalendarID = calendarID

		existing, err := target.GetEvent(ctx, event.UID)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			if _, err := target.AddEvent(ctx, event); err != nil {
				return result, err
			}
			result.Added++
		case err != nil:
			return result, err
		case existing.UserID != userID:
			result.Skipped++
		default:
			if _, err := target.UpdateEvent(ctx, event); err != nil {
				return result, err
			}
			result.Updated++
		}
	}
	return result, nil
}
