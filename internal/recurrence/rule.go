package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UntilLayout is the wire format of UNTIL timestamps. Values are always UTC.
const UntilLayout = "20060102T150405Z"

// Frequency represents supported recurrence cadences.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily advances occurrences by whole days.
	FrequencyDaily
	// FrequencyWeekly advances occurrences by weeks, optionally constrained by weekdays.
	FrequencyWeekly
	// FrequencyMonthly advances occurrences by calendar months.
	FrequencyMonthly
	// FrequencyYearly advances occurrences by calendar years.
	FrequencyYearly
)

var frequencyNames = map[Frequency]string{
	FrequencyDaily:   "DAILY",
	FrequencyWeekly:  "WEEKLY",
	FrequencyMonthly: "MONTHLY",
	FrequencyYearly:  "YEARLY",
}

// String returns the FREQ token for f.
func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return "UNSPECIFIED"
}

// ParseFrequency maps a FREQ token to a Frequency.
func ParseFrequency(token string) (Frequency, bool) {
	token = strings.ToUpper(strings.TrimSpace(token))
	for freq, name := range frequencyNames {
		if name == token {
			return freq, true
		}
	}
	return FrequencyUnspecified, false
}

// EndType selects which end condition terminates a rule.
type EndType int

const (
	// EndNever repeats without bound.
	EndNever EndType = iota
	// EndAfterCount stops after Count occurrences.
	EndAfterCount
	// EndUntil stops after the Until instant.
	EndUntil
)

// String returns a readable label for the end type.
func (e EndType) String() string {
	switch e {
	case EndAfterCount:
		return "REPEAT_COUNT"
	case EndUntil:
		return "UNTIL_DATE"
	default:
		return "ENDLESSLY"
	}
}

// Rule is the decoded form of a recurrence rule string.
//
// Count is meaningful only when EndType is EndAfterCount and Until only when
// EndType is EndUntil.
type Rule struct {
	Frequency Frequency
	Interval  int
	Weekdays  []time.Weekday
	EndType   EndType
	Count     int
	Until     time.Time
}

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// WeekdayCode returns the two-letter BYDAY code for day.
func WeekdayCode(day time.Weekday) string {
	if day < time.Sunday || day > time.Saturday {
		return ""
	}
	return weekdayCodes[day]
}

// ParseWeekdayCode maps a two-letter BYDAY code to a weekday.
func ParseWeekdayCode(code string) (time.Weekday, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, candidate := range weekdayCodes {
		if candidate == code {
			return time.Weekday(i), true
		}
	}
	return time.Sunday, false
}

// ParseError describes recurrence text that could not be decoded.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("recurrence: parse %q: %s", e.Input, e.Reason)
}

// Encode renders rule in the persisted `KEY=VALUE;...` form.
//
// FREQ is always first. INTERVAL is omitted when it is 1 or less. BYDAY is
// written only for weekly rules with at least one weekday. At most one of
// COUNT and UNTIL is appended, selected by EndType.
func Encode(rule Rule) string {
	parts := []string{"FREQ=" + rule.Frequency.String()}
	if rule.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(rule.Interval))
	}
	if rule.Frequency == FrequencyWeekly && len(rule.Weekdays) > 0 {
		codes := make([]string, 0, len(rule.Weekdays))
		for _, day := range rule.Weekdays {
			if code := WeekdayCode(day); code != "" {
				codes = append(codes, code)
			}
		}
		if len(codes) > 0 {
			parts = append(parts, "BYDAY="+strings.Join(codes, ","))
		}
	}
	switch rule.EndType {
	case EndAfterCount:
		parts = append(parts, "COUNT="+strconv.Itoa(rule.Count))
	case EndUntil:
		parts = append(parts, "UNTIL="+rule.Until.UTC().Format(UntilLayout))
	}
	return strings.Join(parts, ";")
}

// Decode parses a rule string. Unknown keys are ignored. A missing or
// unsupported FREQ yields a *ParseError. A COUNT that is not a positive
// integer is ignored, and an UNTIL that does not parse leaves the rule endless.
func Decode(text string) (Rule, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "RRULE:")
	if trimmed == "" {
		return Rule{}, &ParseError{Input: text, Reason: "empty rule"}
	}

	values := make(map[string]string)
	for _, segment := range strings.Split(trimmed, ";") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		values[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	freqToken, ok := values["FREQ"]
	if !ok {
		return Rule{}, &ParseError{Input: text, Reason: "missing FREQ"}
	}
	freq, ok := ParseFrequency(freqToken)
	if !ok {
		return Rule{}, &ParseError{Input: text, Reason: "unsupported FREQ " + freqToken}
	}

	rule := Rule{Frequency: freq, Interval: 1, EndType: EndNever}
	if raw, ok := values["INTERVAL"]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			rule.Interval = n
		}
	}
	if raw, ok := values["BYDAY"]; ok {
		for _, code := range strings.Split(raw, ",") {
			if day, ok := ParseWeekdayCode(code); ok {
				rule.Weekdays = append(rule.Weekdays, day)
			}
		}
	}

	if raw, ok := values["COUNT"]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			rule.EndType = EndAfterCount
			rule.Count = n
			return rule, nil
		}
	}
	if raw, ok := values["UNTIL"]; ok {
		if until, err := time.ParseInLocation(UntilLayout, raw, time.UTC); err == nil {
			rule.EndType = EndUntil
			rule.Until = until
		}
	}
	return rule, nil
}

// Validate reports whether text decodes to a usable rule.
func Validate(text string) error {
	_, err := Decode(text)
	return err
}
