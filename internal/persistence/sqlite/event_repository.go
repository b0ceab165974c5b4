package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/pocketcal/internal/persistence"
)

const eventColumns = `uid, user_id, calendar_id, summary, description, location, dt_start, dt_end, duration, all_day,
	rrule, rdate, exdate, exrule, color, last_modified, sync_status, original_id, original_start`

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool *ConnectionPool
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool}
}

// UpsertEvent inserts an event or replaces the row with the same UID.
func (r *EventRepository) UpsertEvent(ctx context.Context, event persistence.Event) error {
	if event.UID == "" {
		return fmt.Errorf("sqlite: event uid is required")
	}
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			user_id = excluded.user_id,
			calendar_id = excluded.calendar_id,
			summary = excluded.summary,
			description = excluded.description,
			location = excluded.location,
			dt_start = excluded.dt_start,
			dt_end = excluded.dt_end,
			duration = excluded.duration,
			all_day = excluded.all_day,
			rrule = excluded.rrule,
			rdate = excluded.rdate,
			exdate = excluded.exdate,
			exrule = excluded.exrule,
			color = excluded.color,
			last_modified = excluded.last_modified,
			sync_status = excluded.sync_status,
			original_id = excluded.original_id,
			original_start = excluded.original_start
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		event.UID,
		event.UserID,
		event.CalendarID,
		event.Summary,
		nullString(event.Description),
		nullString(event.Location),
		formatTime(event.Start),
		formatTime(event.End),
		nullDuration(event.Duration),
		boolInt(event.AllDay),
		nullString(event.RRule),
		nullString(event.RDate),
		nullString(event.ExDate),
		nullString(event.ExRule),
		nullString(event.Color),
		formatTime(event.LastModified),
		string(event.SyncStatus),
		nullString(event.OriginalID),
		nullTime(event.OriginalStart),
	)
	return mapError(err)
}

// GetEvent retrieves an event by UID.
func (r *EventRepository) GetEvent(ctx context.Context, uid string) (persistence.Event, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE uid = ?`, uid)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, mapError(err)
	}
	return event, nil
}

// ListEvents returns events passing filter ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.CalendarID != nil {
		clauses = append(clauses, "calendar_id = ?")
		args = append(args, *filter.CalendarID)
	}
	if filter.StartsBefore != nil {
		clauses = append(clauses, "dt_start < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	switch {
	case filter.SyncStatus != nil:
		clauses = append(clauses, "sync_status = ?")
		args = append(args, string(*filter.SyncStatus))
	case !filter.IncludeDeleted:
		clauses = append(clauses, "sync_status <> ?")
		args = append(args, string(persistence.SyncStatusDeleted))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY dt_start ASC, uid ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, mapError(rows.Err())
}

// DeleteEvent physically removes an event.
func (r *EventRepository) DeleteEvent(ctx context.Context, uid string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM events WHERE uid = ?`, uid)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                               persistence.Event
		description, location, duration     sql.NullString
		rrule, rdate, exdate, exrule, color sql.NullString
		originalID, originalStart           sql.NullString
		start, end, lastModified, status    string
		allDay                              int
	)
	if err := row.Scan(
		&event.UID,
		&event.UserID,
		&event.CalendarID,
		&event.Summary,
		&description,
		&location,
		&start,
		&end,
		&duration,
		&allDay,
		&rrule,
		&rdate,
		&exdate,
		&exrule,
		&color,
		&lastModified,
		&status,
		&originalID,
		&originalStart,
	); err != nil {
		return persistence.Event{}, err
	}

	var err error
	if event.Start, err = parseTime(start); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTime(end); err != nil {
		return persistence.Event{}, err
	}
	if event.LastModified, err = parseTime(lastModified); err != nil {
		return persistence.Event{}, err
	}
	if event.Duration, err = durationPtr(duration); err != nil {
		return persistence.Event{}, err
	}
	if event.OriginalStart, err = timePtr(originalStart); err != nil {
		return persistence.Event{}, err
	}
	event.Description = stringPtr(description)
	event.Location = stringPtr(location)
	event.AllDay = allDay != 0
	event.RRule = stringPtr(rrule)
	event.RDate = stringPtr(rdate)
	event.ExDate = stringPtr(exdate)
	event.ExRule = stringPtr(exrule)
	event.Color = stringPtr(color)
	event.SyncStatus = persistence.SyncStatus(status)
	event.OriginalID = stringPtr(originalID)
	return event, nil
}
