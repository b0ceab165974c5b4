// Package postgres is a remote store kept in a shared PostgreSQL database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS remote_calendars (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    name        TEXT NOT NULL,
    color       TEXT NOT NULL DEFAULT '',
    is_default  BOOLEAN NOT NULL DEFAULT FALSE,
    is_visible  BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_remote_calendars_user ON remote_calendars (user_id);
CREATE TABLE IF NOT EXISTS remote_events (
    uid            TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    calendar_id    TEXT NOT NULL,
    summary        TEXT NOT NULL,
    description    TEXT,
    location       TEXT,
    dt_start       TIMESTAMPTZ NOT NULL,
    dt_end         TIMESTAMPTZ NOT NULL,
    duration_ms    BIGINT,
    all_day        BOOLEAN NOT NULL DEFAULT FALSE,
    rrule          TEXT,
    rdate          TEXT,
    exdate         TEXT,
    exrule         TEXT,
    color          TEXT,
    last_modified  TIMESTAMPTZ NOT NULL,
    original_id    TEXT,
    original_start TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_remote_events_user ON remote_events (user_id);
CREATE INDEX IF NOT EXISTS idx_remote_events_calendar ON remote_events (calendar_id);
`

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store keeps calendars and events for every user in two tables.
type Store struct {
	db *sql.DB
}

// NewWithDB wraps an open database.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the remote tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create remote schema: %w", err)
	}
	return nil
}

// Authenticated reports whether the database is reachable; the DSN carries the credentials.
func (s *Store) Authenticated(ctx context.Context, _ string) bool {
	return s.db.PingContext(ctx) == nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListCalendars(ctx context.Context, userID string) ([]persistence.Calendar, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, name, color, is_default, is_visible, created_at, updated_at
        FROM remote_calendars WHERE user_id=$1 ORDER BY id
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.Calendar
	for rows.Next() {
		var c persistence.Calendar
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.IsDefault, &c.IsVisible, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		c.SyncStatus = persistence.SyncStatusSynced
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCalendar(ctx context.Context, c persistence.Calendar) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO remote_calendars (id, user_id, name, color, is_default, is_visible, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE SET
            user_id=EXCLUDED.user_id, name=EXCLUDED.name, color=EXCLUDED.color,
            is_default=EXCLUDED.is_default, is_visible=EXCLUDED.is_visible,
            created_at=EXCLUDED.created_at, updated_at=EXCLUDED.updated_at
    `, c.ID, c.UserID, c.Name, c.Color, c.IsDefault, c.IsVisible, column(c.CreatedAt), column(c.UpdatedAt))
	return err
}

func (s *Store) DeleteCalendar(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM remote_events WHERE calendar_id=$1 AND user_id=$2`, id, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM remote_calendars WHERE id=$1 AND user_id=$2`, id, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListEvents(ctx context.Context, userID string) ([]persistence.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT uid, user_id, calendar_id, summary, description, location, dt_start, dt_end,
               duration_ms, all_day, rrule, rdate, exdate, exrule, color, last_modified,
               original_id, original_start
        FROM remote_events WHERE user_id=$1 ORDER BY dt_start, uid
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.Event
	for rows.Next() {
		var (
			e             persistence.Event
			durationMS    sql.NullInt64
			originalStart sql.NullTime
		)
		if err := rows.Scan(&e.UID, &e.UserID, &e.CalendarID, &e.Summary, &e.Description, &e.Location,
			&e.Start, &e.End, &durationMS, &e.AllDay, &e.RRule, &e.RDate, &e.ExDate, &e.ExRule, &e.Color,
			&e.LastModified, &e.OriginalID, &originalStart); err != nil {
			return nil, err
		}
		e.Start = e.Start.UTC()
		e.End = e.End.UTC()
		e.LastModified = e.LastModified.UTC()
		if durationMS.Valid {
			d := time.Duration(durationMS.Int64) * time.Millisecond
			e.Duration = &d
		}
		if originalStart.Valid {
			t := originalStart.Time.UTC()
			e.OriginalStart = &t
		}
		e.SyncStatus = persistence.SyncStatusSynced
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UpsertEvent(ctx context.Context, e persistence.Event) error {
	var durationMS sql.NullInt64
	if e.Duration != nil {
		durationMS = sql.NullInt64{Int64: e.Duration.Milliseconds(), Valid: true}
	}
	var originalStart sql.NullTime
	if e.OriginalStart != nil {
		originalStart = sql.NullTime{Time: e.OriginalStart.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO remote_events (uid, user_id, calendar_id, summary, description, location, dt_start, dt_end,
            duration_ms, all_day, rrule, rdate, exdate, exrule, color, last_modified, original_id, original_start)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        ON CONFLICT (uid) DO UPDATE SET
            user_id=EXCLUDED.user_id, calendar_id=EXCLUDED.calendar_id, summary=EXCLUDED.summary,
            description=EXCLUDED.description, location=EXCLUDED.location, dt_start=EXCLUDED.dt_start,
            dt_end=EXCLUDED.dt_end, duration_ms=EXCLUDED.duration_ms, all_day=EXCLUDED.all_day,
            rrule=EXCLUDED.rrule, rdate=EXCLUDED.rdate, exdate=EXCLUDED.exdate, exrule=EXCLUDED.exrule,
            color=EXCLUDED.color, last_modified=EXCLUDED.last_modified, original_id=EXCLUDED.original_id,
            original_start=EXCLUDED.original_start
    `, e.UID, e.UserID, e.CalendarID, e.Summary, e.Description, e.Location, e.Start.UTC(), e.End.UTC(),
		durationMS, e.AllDay, e.RRule, e.RDate, e.ExDate, e.ExRule, e.Color, column(e.LastModified),
		e.OriginalID, originalStart)
	return err
}

func (s *Store) DeleteEvent(ctx context.Context, userID, uid string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM remote_events WHERE uid=$1 AND user_id=$2`, uid, userID)
	return err
}

// column converts t for a TIMESTAMPTZ column, which keeps microseconds.
// Truncating here matches the driver and the precision of local stamps.
func column(t time.Time) time.Time {
	return t.UTC().Truncate(store.StampPrecision)
}
