// Package ics converts events to and from iCalendar (RFC 5545) documents.
package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/recurrence"
)

const productID = "-//pocketcal//pocketcal//EN"

// Export writes events as a VCALENDAR. Recurrence rules and EXDATE entries
// are written as stored; each EXDATE entry becomes its own property.
func Export(w io.Writer, events []persistence.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	for _, e := range events {
		ev := cal.AddEvent(e.UID)
		ev.SetDtStampTime(stamp.UTC())
		ev.SetModifiedAt(e.LastModified.UTC())
		ev.SetSummary(e.Summary)
		if e.Description != nil {
			ev.SetDescription(*e.Description)
		}
		if e.Location != nil {
			ev.SetLocation(*e.Location)
		}
		if e.Color != nil {
			ev.SetColor(*e.Color)
		}

		end := e.End
		if e.Duration != nil {
			end = e.Start.Add(*e.Duration)
		}
		if e.AllDay {
			ev.SetAllDayStartAt(e.Start)
			ev.SetAllDayEndAt(end)
		} else {
			ev.SetStartAt(e.Start.UTC())
			ev.SetEndAt(end.UTC())
		}

		if e.RRule != nil && *e.RRule != "" {
			ev.SetProperty(ical.ComponentPropertyRrule, strings.TrimPrefix(*e.RRule, "RRULE:"))
		}
		if e.ExDate != nil {
			for _, entry := range strings.Split(*e.ExDate, ",") {
				entry = strings.TrimSpace(entry)
				if entry == "" {
					continue
				}
				if strings.Contains(entry, "T") {
					ev.AddProperty(ical.ComponentPropertyExdate, entry)
				} else {
					ev.AddProperty(ical.ComponentPropertyExdate, entry, ical.WithValue(string(ical.ValueDataTypeDate)))
				}
			}
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

// Imported is the result of parsing a document.
type Imported struct {
	Events  []persistence.Event
	Skipped []error
}

// Parse reads a VCALENDAR. VEVENTs without UID or DTSTART are skipped and
// reported; an unsupported RRULE is dropped so the event imports as a
// single occurrence. Returned events carry no owner or calendar.
func Parse(r io.Reader, loc *time.Location) (Imported, error) {
	if loc == nil {
		loc = time.Local
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return Imported{}, fmt.Errorf("ics: parse calendar: %w", err)
	}

	var out Imported
	for _, ve := range cal.Events() {
		event, err := parseEvent(ve, loc)
		if err != nil {
			out.Skipped = append(out.Skipped, err)
			continue
		}
		out.Events = append(out.Events, event)
	}
	return out, nil
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (persistence.Event, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || strings.TrimSpace(uidProp.Value) == "" {
		return persistence.Event{}, errors.New("ics: VEVENT without UID")
	}
	event := persistence.Event{UID: strings.TrimSpace(uidProp.Value)}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		event.Summary = p.Value
	}
	event.Description = optional(ve.GetProperty(ical.ComponentPropertyDescription))
	event.Location = optional(ve.GetProperty(ical.ComponentPropertyLocation))
	event.Color = optional(ve.GetProperty(ical.ComponentPropertyColor))

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return persistence.Event{}, fmt.Errorf("ics: event %s: missing DTSTART", event.UID)
	}
	event.AllDay = isDateValue(dtStart)

	var err error
	if event.AllDay {
		event.Start, err = ve.GetAllDayStartAt()
	} else {
		event.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return persistence.Event{}, fmt.Errorf("ics: event %s: DTSTART: %w", event.UID, err)
	}

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		if event.AllDay {
			event.End, err = ve.GetAllDayEndAt()
		} else {
			event.End, err = ve.GetEndAt()
		}
		if err != nil {
			return persistence.Event{}, fmt.Errorf("ics: event %s: DTEND: %w", event.UID, err)
		}
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		d, err := recurrence.ParseDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return persistence.Event{}, fmt.Errorf("ics: event %s: DURATION: %w", event.UID, err)
		}
		event.End = event.Start.Add(d)
		event.Duration = &d
	case event.AllDay:
		event.End = event.Start.AddDate(0, 0, 1)
	default:
		event.End = event.Start
	}
	if event.AllDay {
		event.Start = inDay(event.Start, loc)
		event.End = inDay(event.End, loc)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		if rule, err := recurrence.Decode(p.Value); err == nil {
			text := recurrence.Encode(rule)
			event.RRule = &text
		}
	}

	var exdates []string
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, entry := range strings.Split(p.Value, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				exdates = append(exdates, entry)
			}
		}
	}
	if len(exdates) > 0 {
		joined := strings.Join(exdates, ",")
		event.ExDate = &joined
	}

	if t, err := ve.GetLastModifiedAt(); err == nil {
		event.LastModified = t
	}
	return event, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if values, ok := p.ICalParameters["VALUE"]; ok && len(values) > 0 && strings.EqualFold(values[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// inDay re-anchors a date-only value at midnight in loc.
func inDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func optional(p *ical.IANAProperty) *string {
	if p == nil || p.Value == "" {
		return nil
	}
	value := p.Value
	return &value
}
