package recurrence

import (
	"sort"
	"time"
)

// DefaultMaxInstances bounds how many occurrences a single rule may be walked
// through per expansion.
const DefaultMaxInstances = 500

// Definition is the subset of a stored event the generator needs.
type Definition struct {
	UID         string
	Title       string
	Description string
	Location    string
	Color       string
	AllDay      bool
	Start       time.Time
	End         time.Time
	// Duration, when set, takes precedence over End-Start for recurring events.
	Duration *time.Duration
	RRule    *string
	ExDate   *string
}

// Recurring reports whether the definition carries a recurrence rule.
func (d Definition) Recurring() bool {
	return d.RRule != nil && *d.RRule != ""
}

// Instance is one concrete occurrence of a definition.
type Instance struct {
	EventUID    string
	Start       time.Time
	End         time.Time
	Title       string
	Description string
	Location    string
	Color       string
	AllDay      bool
	IsRecurring bool
}

// Generator expands definitions into instances over a query window.
type Generator struct {
	location     *time.Location
	maxInstances int
}

// NewGenerator constructs a Generator. Calendar arithmetic and local EXDATE
// entries use loc; nil means time.Local. maxInstances <= 0 selects
// DefaultMaxInstances.
func NewGenerator(loc *time.Location, maxInstances int) *Generator {
	if loc == nil {
		loc = time.Local
	}
	if maxInstances <= 0 {
		maxInstances = DefaultMaxInstances
	}
	return &Generator{location: loc, maxInstances: maxInstances}
}

// Location returns the zone used for calendar arithmetic.
func (g *Generator) Location() *time.Location {
	return g.location
}

// Generate returns the instances of def that overlap [rangeStart, rangeEnd).
//
// The generator enforces the following semantics:
//   - A non-recurring definition yields one instance iff Start < rangeEnd and End > rangeStart.
//   - A recurring definition is walked from Start until an occurrence passes
//     min(UNTIL, rangeEnd), COUNT occurrences were walked, or maxInstances were examined.
//   - EXDATE exclusions still count towards COUNT.
//   - A rule that does not decode yields no instances.
func (g *Generator) Generate(def Definition, rangeStart, rangeEnd time.Time) []Instance {
	if !rangeStart.Before(rangeEnd) {
		return nil
	}
	if !def.Recurring() {
		if def.Start.Before(rangeEnd) && def.End.After(rangeStart) {
			return []Instance{newInstance(def, def.Start, def.End, false)}
		}
		return nil
	}

	rule, err := Decode(*def.RRule)
	if err != nil {
		return nil
	}

	duration := def.End.Sub(def.Start)
	if def.Duration != nil {
		duration = *def.Duration
	}
	var exclusions Exclusions
	if def.ExDate != nil {
		exclusions = ParseExclusions(*def.ExDate)
	}

	upper := rangeEnd
	if rule.EndType == EndUntil && rule.Until.Before(upper) {
		upper = rule.Until
	}
	earliest := rangeStart.Add(-duration)

	walker := newCadence(rule, def.Start.In(g.location))
	var out []Instance
	for examined := 0; examined < g.maxInstances; examined++ {
		if rule.EndType == EndAfterCount && examined >= rule.Count {
			break
		}
		occStart := walker.current
		if occStart.After(upper) {
			break
		}
		if !occStart.Before(earliest) && !exclusions.Excludes(occStart, g.location) {
			occEnd := occStart.Add(duration)
			if occStart.Before(rangeEnd) && occEnd.After(rangeStart) {
				out = append(out, newInstance(def, occStart, occEnd, true))
			}
		}
		walker.advance()
	}
	return out
}

// GenerateAll expands every definition and returns the instances sorted by
// start time, ties broken by event UID.
func (g *Generator) GenerateAll(defs []Definition, rangeStart, rangeEnd time.Time) []Instance {
	var out []Instance
	for _, def := range defs {
		out = append(out, g.Generate(def, rangeStart, rangeEnd)...)
	}
	SortInstances(out)
	return out
}

// SortInstances orders instances by start time, then event UID.
func SortInstances(instances []Instance) {
	sort.SliceStable(instances, func(i, j int) bool {
		if !instances[i].Start.Equal(instances[j].Start) {
			return instances[i].Start.Before(instances[j].Start)
		}
		return instances[i].EventUID < instances[j].EventUID
	})
}

func newInstance(def Definition, start, end time.Time, recurring bool) Instance {
	return Instance{
		EventUID:    def.UID,
		Start:       start,
		End:         end,
		Title:       def.Title,
		Description: def.Description,
		Location:    def.Location,
		Color:       def.Color,
		AllDay:      def.AllDay,
		IsRecurring: recurring,
	}
}

// cadence walks the occurrence starts of a rule. Each step derives a new
// time.Time value; nothing is mutated in place.
type cadence struct {
	rule     Rule
	anchor   time.Time
	current  time.Time
	step     int
	weekdays []time.Weekday
}

func newCadence(rule Rule, anchor time.Time) *cadence {
	c := &cadence{rule: rule, anchor: anchor, current: anchor}
	if rule.Frequency == FrequencyWeekly && len(rule.Weekdays) > 0 {
		seen := make(map[time.Weekday]struct{}, len(rule.Weekdays))
		for _, day := range rule.Weekdays {
			if _, ok := seen[day]; ok {
				continue
			}
			seen[day] = struct{}{}
			c.weekdays = append(c.weekdays, day)
		}
		sort.Slice(c.weekdays, func(i, j int) bool { return c.weekdays[i] < c.weekdays[j] })
	}
	return c
}

func (c *cadence) advance() {
	interval := c.rule.Interval
	if interval < 1 {
		interval = 1
	}
	c.step++
	switch c.rule.Frequency {
	case FrequencyDaily:
		c.current = c.anchor.AddDate(0, 0, c.step*interval)
	case FrequencyWeekly:
		if len(c.weekdays) == 0 {
			c.current = c.anchor.AddDate(0, 0, 7*c.step*interval)
			return
		}
		c.current = nextByDay(c.current, c.weekdays, interval)
	case FrequencyMonthly:
		// Counted from the anchor, so a clamped February does not pull
		// March back to the 29th.
		c.current = addMonthsClamped(c.anchor, c.step*interval)
	case FrequencyYearly:
		c.current = addMonthsClamped(c.anchor, 12*c.step*interval)
	default:
		c.current = c.anchor.AddDate(0, 0, c.step*interval)
	}
}

// nextByDay moves to the next listed weekday after from.
//
// NOTE: moving to a later weekday inside the same week ignores interval; only
// the wrap to the first listed weekday skips interval weeks. With INTERVAL=2
// and BYDAY=MO,WE the Monday and Wednesday of one week are both produced
// before the two-week jump. Existing stored rules depend on this cadence.
func nextByDay(from time.Time, weekdays []time.Weekday, interval int) time.Time {
	current := from.Weekday()
	for _, day := range weekdays {
		if day > current {
			return from.AddDate(0, 0, int(day-current))
		}
	}
	// Weeks start on Sunday, so the first listed weekday of the target week
	// is reached by shifting back from the same weekday interval weeks ahead.
	return from.AddDate(0, 0, 7*interval+int(weekdays[0]-current))
}

// addMonthsClamped adds months to t, clamping the day of month to the length
// of the target month so Jan 31 + 1 month is the last day of February.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	first := time.Date(year, month+time.Month(months), 1, hour, min, sec, t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
