package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses an RFC 5545 DURATION value such as "PT1H30M" or "P1D".
func ParseDuration(text string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return 0, &ParseError{Input: text, Reason: "empty duration"}
	}
	sign := time.Duration(1)
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return 0, &ParseError{Input: text, Reason: "duration must start with P"}
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	digits := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits += string(r)
		case r == 'T':
			if inTime || digits != "" {
				return 0, &ParseError{Input: text, Reason: "misplaced T"}
			}
			inTime = true
		default:
			if digits == "" {
				return 0, &ParseError{Input: text, Reason: "missing number before " + string(r)}
			}
			n, err := strconv.Atoi(digits)
			if err != nil {
				return 0, &ParseError{Input: text, Reason: err.Error()}
			}
			digits = ""
			unit, ok := durationUnit(r, inTime)
			if !ok {
				return 0, &ParseError{Input: text, Reason: "unknown designator " + string(r)}
			}
			total += time.Duration(n) * unit
		}
	}
	if digits != "" {
		return 0, &ParseError{Input: text, Reason: "trailing number without designator"}
	}
	return sign * total, nil
}

func durationUnit(designator rune, inTime bool) (time.Duration, bool) {
	if inTime {
		switch designator {
		case 'H':
			return time.Hour, true
		case 'M':
			return time.Minute, true
		case 'S':
			return time.Second, true
		}
		return 0, false
	}
	switch designator {
	case 'W':
		return 7 * 24 * time.Hour, true
	case 'D':
		return 24 * time.Hour, true
	}
	return 0, false
}

// FormatDuration renders d as an RFC 5545 DURATION value. Sub-second parts are dropped.
func FormatDuration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	if hours == 0 && minutes == 0 && seconds == 0 {
		if days == 0 {
			b.WriteString("T0S")
		}
		return b.String()
	}
	b.WriteByte('T')
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dM", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&b, "%dS", seconds)
	}
	return b.String()
}
