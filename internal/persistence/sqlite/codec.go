package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/example/pocketcal/internal/recurrence"
)

// timestampLayout keeps a fixed width so text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.ParseInLocation(timestampLayout, value, time.UTC)
	if err == nil {
		return t, nil
	}
	if t, rfcErr := time.Parse(time.RFC3339Nano, value); rfcErr == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*value), Valid: true}
}

func timePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDuration(value *time.Duration) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: recurrence.FormatDuration(*value), Valid: true}
}

func durationPtr(value sql.NullString) (*time.Duration, error) {
	if !value.Valid {
		return nil, nil
	}
	d, err := recurrence.ParseDuration(value.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
