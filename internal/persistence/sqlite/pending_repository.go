package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/pocketcal/internal/persistence"
)

const pendingColumns = `id, session_id, user_id, title, description, location, start_time, end_time, all_day, rrule,
	confidence, status, operation, target_event_id, scope, instance_date, created_at`

// PendingEventRepository implements persistence.PendingEventRepository using SQLite.
type PendingEventRepository struct {
	pool *ConnectionPool
}

// NewPendingEventRepository creates a new SQLite pending event repository.
func NewPendingEventRepository(pool *ConnectionPool) *PendingEventRepository {
	return &PendingEventRepository{pool: pool}
}

// CreatePendingEvents inserts a batch of staged events atomically.
func (r *PendingEventRepository) CreatePendingEvents(ctx context.Context, events []persistence.PendingEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO pending_events (`+pendingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return mapError(err)
		}
		defer stmt.Close()

		for _, event := range events {
			if _, err := stmt.ExecContext(ctx, pendingArgs(event)...); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// GetPendingEvent retrieves a staged event by ID.
func (r *PendingEventRepository) GetPendingEvent(ctx context.Context, id string) (persistence.PendingEvent, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_events WHERE id = ?`, id)
	event, err := scanPending(row)
	if err != nil {
		return persistence.PendingEvent{}, mapError(err)
	}
	return event, nil
}

// ListPendingEvents returns the staged events of a session ordered by creation time.
func (r *PendingEventRepository) ListPendingEvents(ctx context.Context, sessionID string) ([]persistence.PendingEvent, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_events WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var events []persistence.PendingEvent
	for rows.Next() {
		event, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, mapError(rows.Err())
}

// UpdatePendingEvent replaces an existing staged event.
func (r *PendingEventRepository) UpdatePendingEvent(ctx context.Context, event persistence.PendingEvent) error {
	args := pendingArgs(event)
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE pending_events SET
			session_id = ?, user_id = ?, title = ?, description = ?, location = ?, start_time = ?, end_time = ?,
			all_day = ?, rrule = ?, confidence = ?, status = ?, operation = ?, target_event_id = ?, scope = ?,
			instance_date = ?, created_at = ?
		WHERE id = ?`, append(append([]any{}, args[1:]...), args[0])...)
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

// DeletePendingEvents removes every staged event of a session.
func (r *PendingEventRepository) DeletePendingEvents(ctx context.Context, sessionID string) error {
	_, err := r.pool.DB().ExecContext(ctx, `DELETE FROM pending_events WHERE session_id = ?`, sessionID)
	return mapError(err)
}

func pendingArgs(event persistence.PendingEvent) []any {
	return []any{
		event.ID,
		event.SessionID,
		event.UserID,
		event.Title,
		nullString(event.Description),
		nullString(event.Location),
		nullTime(event.Start),
		nullTime(event.End),
		boolInt(event.AllDay),
		nullString(event.RRule),
		event.Confidence,
		string(event.Status),
		string(event.Operation),
		nullString(event.TargetEventID),
		nullString(event.Scope),
		nullTime(event.InstanceDate),
		formatTime(event.CreatedAt),
	}
}

func scanPending(row rowScanner) (persistence.PendingEvent, error) {
	var (
		event                        persistence.PendingEvent
		description, location, rrule sql.NullString
		start, end, instanceDate     sql.NullString
		targetEventID, scope         sql.NullString
		allDay                       int
		status, operation, createdAt string
	)
	if err := row.Scan(
		&event.ID,
		&event.SessionID,
		&event.UserID,
		&event.Title,
		&description,
		&location,
		&start,
		&end,
		&allDay,
		&rrule,
		&event.Confidence,
		&status,
		&operation,
		&targetEventID,
		&scope,
		&instanceDate,
		&createdAt,
	); err != nil {
		return persistence.PendingEvent{}, err
	}

	var err error
	if event.Start, err = timePtr(start); err != nil {
		return persistence.PendingEvent{}, err
	}
	if event.End, err = timePtr(end); err != nil {
		return persistence.PendingEvent{}, err
	}
	if event.InstanceDate, err = timePtr(instanceDate); err != nil {
		return persistence.PendingEvent{}, err
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.PendingEvent{}, err
	}
	event.Description = stringPtr(description)
	event.Location = stringPtr(location)
	event.RRule = stringPtr(rrule)
	event.TargetEventID = stringPtr(targetEventID)
	event.Scope = stringPtr(scope)
	event.AllDay = allDay != 0
	event.Status = persistence.PendingStatus(status)
	event.Operation = persistence.OperationType(operation)
	return event, nil
}
