package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/pocketcal/internal/persistence"
)

const calendarColumns = `id, user_id, name, color, is_default, is_visible, sync_status, created_at, updated_at`

// CalendarRepository implements persistence.CalendarRepository using SQLite.
type CalendarRepository struct {
	pool *ConnectionPool
}

// NewCalendarRepository creates a new SQLite calendar repository.
func NewCalendarRepository(pool *ConnectionPool) *CalendarRepository {
	return &CalendarRepository{pool: pool}
}

// UpsertCalendar inserts a calendar or replaces the row with the same ID.
func (r *CalendarRepository) UpsertCalendar(ctx context.Context, calendar persistence.Calendar) error {
	if calendar.ID == "" {
		return fmt.Errorf("sqlite: calendar id is required")
	}
	query := `
		INSERT INTO calendars (` + calendarColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			color = excluded.color,
			is_default = excluded.is_default,
			is_visible = excluded.is_visible,
			sync_status = excluded.sync_status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		calendar.ID,
		calendar.UserID,
		calendar.Name,
		calendar.Color,
		boolInt(calendar.IsDefault),
		boolInt(calendar.IsVisible),
		string(calendar.SyncStatus),
		formatTime(calendar.CreatedAt),
		formatTime(calendar.UpdatedAt),
	)
	return mapError(err)
}

// GetCalendar retrieves a calendar by ID.
func (r *CalendarRepository) GetCalendar(ctx context.Context, id string) (persistence.Calendar, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id = ?`, id)
	calendar, err := scanCalendar(row)
	if err != nil {
		return persistence.Calendar{}, mapError(err)
	}
	return calendar, nil
}

// ListCalendars returns calendars passing filter ordered by creation time.
func (r *CalendarRepository) ListCalendars(ctx context.Context, filter persistence.CalendarFilter) ([]persistence.Calendar, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	switch {
	case filter.SyncStatus != nil:
		clauses = append(clauses, "sync_status = ?")
		args = append(args, string(*filter.SyncStatus))
	case !filter.IncludeDeleted:
		clauses = append(clauses, "sync_status <> ?")
		args = append(args, string(persistence.SyncStatusDeleted))
	}

	query := `SELECT ` + calendarColumns + ` FROM calendars`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var calendars []persistence.Calendar
	for rows.Next() {
		calendar, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		calendars = append(calendars, calendar)
	}
	return calendars, mapError(rows.Err())
}

// DeleteCalendar physically removes a calendar and its events.
func (r *CalendarRepository) DeleteCalendar(ctx context.Context, id string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM calendars WHERE id = ?`, id)
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
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE calendar_id = ?`, id); err != nil {
			return mapError(err)
		}
		return nil
	})
}

func scanCalendar(row rowScanner) (persistence.Calendar, error) {
	var (
		calendar             persistence.Calendar
		isDefault, isVisible int
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&calendar.ID,
		&calendar.UserID,
		&calendar.Name,
		&calendar.Color,
		&isDefault,
		&isVisible,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Calendar{}, err
	}

	var err error
	if calendar.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Calendar{}, err
	}
	if calendar.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Calendar{}, err
	}
	calendar.IsDefault = isDefault != 0
	calendar.IsVisible = isVisible != 0
	calendar.SyncStatus = persistence.SyncStatus(status)
	return calendar, nil
}
