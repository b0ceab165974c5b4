package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/example/pocketcal/internal/recurrence"
)

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var (
	everyN       = regexp.MustCompile(`^every (\d+) (day|week|month|year)s?$`)
	listSplitter = regexp.MustCompile(`\s*(?:,|\band\b|&|/)\s*`)
)

// RuleFromPhrase maps a free-text recurrence description to rule text.
// Unrecognised phrases return false and the proposal is kept non-recurring.
func RuleFromPhrase(phrase string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(phrase))
	text = strings.TrimSuffix(text, ".")
	if text == "" {
		return "", false
	}
	if upper := strings.ToUpper(text); strings.HasPrefix(upper, "FREQ=") || strings.HasPrefix(upper, "RRULE:") {
		rule, err := recurrence.Decode(upper)
		if err != nil {
			return "", false
		}
		return recurrence.Encode(rule), true
	}

	rule := recurrence.Rule{Interval: 1}
	switch text {
	case "daily", "every day", "each day":
		rule.Frequency = recurrence.FrequencyDaily
	case "weekly", "every week", "each week":
		rule.Frequency = recurrence.FrequencyWeekly
	case "biweekly", "fortnightly", "every other week", "every two weeks":
		rule.Frequency = recurrence.FrequencyWeekly
		rule.Interval = 2
	case "weekdays", "every weekday", "on weekdays":
		rule.Frequency = recurrence.FrequencyWeekly
		rule.Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	case "monthly", "every month", "each month":
		rule.Frequency = recurrence.FrequencyMonthly
	case "yearly", "annually", "every year", "each year":
		rule.Frequency = recurrence.FrequencyYearly
	default:
		if m := everyN.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				return "", false
			}
			rule.Interval = n
			rule.Frequency = map[string]recurrence.Frequency{
				"day":   recurrence.FrequencyDaily,
				"week":  recurrence.FrequencyWeekly,
				"month": recurrence.FrequencyMonthly,
				"year":  recurrence.FrequencyYearly,
			}[m[2]]
			break
		}
		days, ok := weekdaysFromPhrase(text)
		if !ok {
			return "", false
		}
		rule.Frequency = recurrence.FrequencyWeekly
		rule.Weekdays = days
	}
	return recurrence.Encode(rule), true
}

// weekdaysFromPhrase handles "every monday", "every mon and wed", "tuesdays".
func weekdaysFromPhrase(text string) ([]time.Weekday, bool) {
	text = strings.TrimPrefix(text, "every ")
	text = strings.TrimPrefix(text, "on ")
	var days []time.Weekday
	seen := map[time.Weekday]bool{}
	for _, token := range listSplitter.Split(text, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		day, ok := weekdayNames[token]
		if !ok {
			day, ok = weekdayNames[strings.TrimSuffix(token, "s")]
		}
		if !ok {
			return nil, false
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	return days, len(days) > 0
}
