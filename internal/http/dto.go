package http

import (
	"time"

	"github.com/example/pocketcal/internal/application"
	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/recurrence"
)

type calendarRequest struct {
	Name      string `json:"name"`
	Color     string `json:"color"`
	IsVisible *bool  `json:"is_visible"`
}

func (r calendarRequest) toInput() application.CalendarInput {
	return application.CalendarInput{Name: r.Name, Color: r.Color, IsVisible: r.IsVisible}
}

type calendarDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	IsDefault  bool      `json:"is_default"`
	IsVisible  bool      `json:"is_visible"`
	SyncStatus string    `json:"sync_status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toCalendarDTO(c persistence.Calendar) calendarDTO {
	return calendarDTO{
		ID:         c.ID,
		Name:       c.Name,
		Color:      c.Color,
		IsDefault:  c.IsDefault,
		IsVisible:  c.IsVisible,
		SyncStatus: string(c.SyncStatus),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func toCalendarDTOs(calendars []persistence.Calendar) []calendarDTO {
	out := make([]calendarDTO, 0, len(calendars))
	for _, c := range calendars {
		out = append(out, toCalendarDTO(c))
	}
	return out
}

type eventRequest struct {
	CalendarID  string    `json:"calendar_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Location    *string   `json:"location"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	// Duration is RFC 5545 text such as "PT1H30M".
	Duration *string `json:"duration"`
	AllDay   bool    `json:"all_day"`
	RRule    *string `json:"rrule"`
	ExDate   *string `json:"exdate"`
	Color    *string `json:"color"`
}

// toInput converts the request. A malformed duration is reported as a field error.
func (r eventRequest) toInput() (application.EventInput, error) {
	input := application.EventInput{
		CalendarID:  r.CalendarID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Start:       r.Start,
		End:         r.End,
		AllDay:      r.AllDay,
		RRule:       r.RRule,
		ExDate:      r.ExDate,
		Color:       r.Color,
	}
	if r.Duration != nil && *r.Duration != "" {
		d, err := recurrence.ParseDuration(*r.Duration)
		if err != nil {
			return input, &application.ValidationError{FieldErrors: map[string]string{"duration": err.Error()}}
		}
		input.Duration = &d
	}
	return input, nil
}

type eventDTO struct {
	UID           string     `json:"uid"`
	CalendarID    string     `json:"calendar_id"`
	Title         string     `json:"title"`
	Description   *string    `json:"description,omitempty"`
	Location      *string    `json:"location,omitempty"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Duration      string     `json:"duration,omitempty"`
	AllDay        bool       `json:"all_day"`
	RRule         *string    `json:"rrule,omitempty"`
	ExDate        *string    `json:"exdate,omitempty"`
	Color         *string    `json:"color,omitempty"`
	LastModified  time.Time  `json:"last_modified"`
	SyncStatus    string     `json:"sync_status"`
	OriginalID    *string    `json:"original_id,omitempty"`
	OriginalStart *time.Time `json:"original_start,omitempty"`
}

func toEventDTO(e persistence.Event) eventDTO {
	dto := eventDTO{
		UID:           e.UID,
		CalendarID:    e.CalendarID,
		Title:         e.Summary,
		Description:   e.Description,
		Location:      e.Location,
		Start:         e.Start,
		End:           e.End,
		AllDay:        e.AllDay,
		RRule:         e.RRule,
		ExDate:        e.ExDate,
		Color:         e.Color,
		LastModified:  e.LastModified,
		SyncStatus:    string(e.SyncStatus),
		OriginalID:    e.OriginalID,
		OriginalStart: e.OriginalStart,
	}
	if e.Duration != nil {
		dto.Duration = recurrence.FormatDuration(*e.Duration)
	}
	return dto
}

func toEventDTOs(events []persistence.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toEventDTO(e))
	}
	return out
}

type instanceDTO struct {
	EventUID    string    `json:"event_uid"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Color       string    `json:"color,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	IsRecurring bool      `json:"is_recurring"`
}

func toInstanceDTOs(instances []recurrence.Instance) []instanceDTO {
	out := make([]instanceDTO, 0, len(instances))
	for _, in := range instances {
		out = append(out, instanceDTO{
			EventUID:    in.EventUID,
			Title:       in.Title,
			Description: in.Description,
			Location:    in.Location,
			Color:       in.Color,
			Start:       in.Start,
			End:         in.End,
			AllDay:      in.AllDay,
			IsRecurring: in.IsRecurring,
		})
	}
	return out
}

type pendingEventDTO struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id"`
	Title         string     `json:"title"`
	Description   *string    `json:"description,omitempty"`
	Location      *string    `json:"location,omitempty"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	AllDay        bool       `json:"all_day"`
	RRule         *string    `json:"rrule,omitempty"`
	Confidence    float64    `json:"confidence"`
	Status        string     `json:"status"`
	Operation     string     `json:"operation"`
	TargetEventID *string    `json:"target_event_id,omitempty"`
	Scope         *string    `json:"scope,omitempty"`
	InstanceDate  *time.Time `json:"instance_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toPendingEventDTO(p persistence.PendingEvent) pendingEventDTO {
	return pendingEventDTO{
		ID:            p.ID,
		SessionID:     p.SessionID,
		Title:         p.Title,
		Description:   p.Description,
		Location:      p.Location,
		Start:         p.Start,
		End:           p.End,
		AllDay:        p.AllDay,
		RRule:         p.RRule,
		Confidence:    p.Confidence,
		Status:        string(p.Status),
		Operation:     string(p.Operation),
		TargetEventID: p.TargetEventID,
		Scope:         p.Scope,
		InstanceDate:  p.InstanceDate,
		CreatedAt:     p.CreatedAt,
	}
}

func toPendingEventDTOs(events []persistence.PendingEvent) []pendingEventDTO {
	out := make([]pendingEventDTO, 0, len(events))
	for _, p := range events {
		out = append(out, toPendingEventDTO(p))
	}
	return out
}
