package application

import "time"

// Principal is the user a request acts for.
type Principal struct {
	UserID string
}

// CalendarInput captures caller provided calendar fields.
type CalendarInput struct {
	Name      string
	Color     string
	IsVisible *bool
}

// EventInput captures caller provided event fields. An empty CalendarID
// selects the user's default calendar on create.
type EventInput struct {
	CalendarID  string
	Title       string
	Description *string
	Location    *string
	Start       time.Time
	End         time.Time
	Duration    *time.Duration
	AllDay      bool
	RRule       *string
	ExDate      *string
	Color       *string
}
