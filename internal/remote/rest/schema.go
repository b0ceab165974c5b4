package rest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/recurrence"
)

// Schema names the field naming a server uses for event records.
type Schema string

const (
	SchemaUnknown Schema = ""
	SchemaSnake   Schema = "snake_case"
	SchemaCamel   Schema = "camelCase"
)

// ParseSchema accepts "snake_case", "camelCase" or "auto".
func ParseSchema(value string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return SchemaUnknown, nil
	case "snake", "snake_case":
		return SchemaSnake, nil
	case "camel", "camelcase":
		return SchemaCamel, nil
	}
	return SchemaUnknown, fmt.Errorf("unknown event schema %q", value)
}

// detectSchema inspects the keys of one event record.
func detectSchema(record map[string]json.RawMessage) Schema {
	for _, key := range []string{"last_modified", "calendar_id", "dt_start", "user_id"} {
		if _, ok := record[key]; ok {
			return SchemaSnake
		}
	}
	for _, key := range []string{"lastModified", "calendarId", "dtStart", "userId"} {
		if _, ok := record[key]; ok {
			return SchemaCamel
		}
	}
	return SchemaUnknown
}

type calendarRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	IsDefault bool      `json:"is_default"`
	IsVisible bool      `json:"is_visible"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCalendarRecord(c persistence.Calendar) calendarRecord {
	return calendarRecord{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		Color:     c.Color,
		IsDefault: c.IsDefault,
		IsVisible: c.IsVisible,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (r calendarRecord) calendar() persistence.Calendar {
	return persistence.Calendar{
		ID:         r.ID,
		UserID:     r.UserID,
		Name:       r.Name,
		Color:      r.Color,
		IsDefault:  r.IsDefault,
		IsVisible:  r.IsVisible,
		SyncStatus: persistence.SyncStatusSynced,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type snakeEvent struct {
	UID           string     `json:"uid"`
	UserID        string     `json:"user_id"`
	CalendarID    string     `json:"calendar_id"`
	Summary       string     `json:"summary"`
	Description   *string    `json:"description,omitempty"`
	Location      *string    `json:"location,omitempty"`
	DTStart       time.Time  `json:"dt_start"`
	DTEnd         time.Time  `json:"dt_end"`
	Duration      *string    `json:"duration,omitempty"`
	AllDay        bool       `json:"all_day"`
	RRule         *string    `json:"rrule,omitempty"`
	RDate         *string    `json:"rdate,omitempty"`
	ExDate        *string    `json:"exdate,omitempty"`
	ExRule        *string    `json:"exrule,omitempty"`
	Color         *string    `json:"color,omitempty"`
	LastModified  time.Time  `json:"last_modified"`
	OriginalID    *string    `json:"original_id,omitempty"`
	OriginalStart *time.Time `json:"original_start,omitempty"`
}

type camelEvent struct {
	UID           string     `json:"uid"`
	UserID        string     `json:"userId"`
	CalendarID    string     `json:"calendarId"`
	Summary       string     `json:"summary"`
	Description   *string    `json:"description,omitempty"`
	Location      *string    `json:"location,omitempty"`
	DTStart       time.Time  `json:"dtStart"`
	DTEnd         time.Time  `json:"dtEnd"`
	Duration      *string    `json:"duration,omitempty"`
	AllDay        bool       `json:"allDay"`
	RRule         *string    `json:"rrule,omitempty"`
	RDate         *string    `json:"rdate,omitempty"`
	ExDate        *string    `json:"exdate,omitempty"`
	ExRule        *string    `json:"exrule,omitempty"`
	Color         *string    `json:"color,omitempty"`
	LastModified  time.Time  `json:"lastModified"`
	OriginalID    *string    `json:"originalId,omitempty"`
	OriginalStart *time.Time `json:"originalStart,omitempty"`
}

// encodeEvent renders e in the field naming of schema.
func encodeEvent(schema Schema, e persistence.Event) any {
	snake := snakeEvent{
		UID:           e.UID,
		UserID:        e.UserID,
		CalendarID:    e.CalendarID,
		Summary:       e.Summary,
		Description:   e.Description,
		Location:      e.Location,
		DTStart:       e.Start.UTC(),
		DTEnd:         e.End.UTC(),
		AllDay:        e.AllDay,
		RRule:         e.RRule,
		RDate:         e.RDate,
		ExDate:        e.ExDate,
		ExRule:        e.ExRule,
		Color:         e.Color,
		LastModified:  e.LastModified.UTC(),
		OriginalID:    e.OriginalID,
		OriginalStart: e.OriginalStart,
	}
	if e.Duration != nil {
		d := recurrence.FormatDuration(*e.Duration)
		snake.Duration = &d
	}
	if schema == SchemaCamel {
		return camelEvent(snake)
	}
	return snake
}

// decodeEvents parses a JSON array of event records in schema. A record that
// does not decode is reported in skipped and left out; only a body that is not
// an array fails the call.
func decodeEvents(schema Schema, body []byte) (events []persistence.Event, skipped []error, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, err
	}

	events = make([]persistence.Event, 0, len(raw))
	for i, item := range raw {
		event, err := decodeEvent(schema, item)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		events = append(events, event)
	}
	return events, skipped, nil
}

func decodeEvent(schema Schema, item json.RawMessage) (persistence.Event, error) {
	var r snakeEvent
	if schema == SchemaCamel {
		var c camelEvent
		if err := json.Unmarshal(item, &c); err != nil {
			return persistence.Event{}, err
		}
		r = snakeEvent(c)
	} else if err := json.Unmarshal(item, &r); err != nil {
		return persistence.Event{}, err
	}

	event := persistence.Event{
		UID:           r.UID,
		UserID:        r.UserID,
		CalendarID:    r.CalendarID,
		Summary:       r.Summary,
		Description:   r.Description,
		Location:      r.Location,
		Start:         r.DTStart,
		End:           r.DTEnd,
		AllDay:        r.AllDay,
		RRule:         r.RRule,
		RDate:         r.RDate,
		ExDate:        r.ExDate,
		ExRule:        r.ExRule,
		Color:         r.Color,
		LastModified:  r.LastModified,
		SyncStatus:    persistence.SyncStatusSynced,
		OriginalID:    r.OriginalID,
		OriginalStart: r.OriginalStart,
	}
	if r.Duration != nil {
		d, err := recurrence.ParseDuration(*r.Duration)
		if err != nil {
			return persistence.Event{}, fmt.Errorf("event %s: %w", r.UID, err)
		}
		event.Duration = &d
	}
	return event, nil
}
