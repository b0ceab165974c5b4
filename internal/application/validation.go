package application

import (
	"regexp"
	"strings"

	"github.com/example/pocketcal/internal/recurrence"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func validateCalendar(input CalendarInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "is required")
	}
	if input.Color != "" && !colorPattern.MatchString(input.Color) {
		vErr.add("color", "must be #RRGGBB")
	}
}

// validateEvent checks the event fields and returns the normalized rule text.
func validateEvent(input EventInput, vErr *ValidationError) *string {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "is required")
	}
	if input.Start.IsZero() {
		vErr.add("start", "is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "is required")
	} else if input.End.Before(input.Start) {
		vErr.add("end", "must not be before start")
	}
	if input.Duration != nil && *input.Duration < 0 {
		vErr.add("duration", "must not be negative")
	}
	if input.Color != nil && *input.Color != "" && !colorPattern.MatchString(*input.Color) {
		vErr.add("color", "must be #RRGGBB")
	}

	if input.RRule == nil || strings.TrimSpace(*input.RRule) == "" {
		return nil
	}
	rule, err := recurrence.Decode(*input.RRule)
	if err != nil {
		vErr.add("rrule", err.Error())
		return nil
	}
	text := recurrence.Encode(rule)
	return &text
}
