package recurrence

import (
	"strings"
	"time"
)

const (
	dayKeyLayout     = "20060102"
	localStampLayout = "20060102T150405"
	exdateUTCLayout  = UntilLayout
)

// Exclusions holds EXDATE entries bucketed by calendar day. UTC-suffixed
// entries and local entries are kept apart and matched against the
// occurrence start in the corresponding zone.
type Exclusions struct {
	utc   map[string]struct{}
	local map[string]struct{}
}

// ParseExclusions parses a comma-separated EXDATE field. Entries that match
// none of the accepted layouts are skipped.
func ParseExclusions(field string) Exclusions {
	ex := Exclusions{
		utc:   make(map[string]struct{}),
		local: make(map[string]struct{}),
	}
	for _, raw := range strings.Split(field, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.HasSuffix(entry, "Z") {
			if ts, err := time.ParseInLocation(exdateUTCLayout, entry, time.UTC); err == nil {
				ex.utc[ts.Format(dayKeyLayout)] = struct{}{}
			}
			continue
		}
		if ts, err := time.Parse(dayKeyLayout, entry); err == nil {
			ex.local[ts.Format(dayKeyLayout)] = struct{}{}
			continue
		}
		if ts, err := time.Parse(localStampLayout, entry); err == nil {
			ex.local[ts.Format(dayKeyLayout)] = struct{}{}
		}
	}
	return ex
}

// Len returns the number of distinct excluded day buckets.
func (e Exclusions) Len() int {
	return len(e.utc) + len(e.local)
}

// Excludes reports whether an occurrence starting at start falls on an
// excluded day. Local entries are interpreted in loc.
func (e Exclusions) Excludes(start time.Time, loc *time.Location) bool {
	if len(e.utc) > 0 {
		if _, ok := e.utc[start.UTC().Format(dayKeyLayout)]; ok {
			return true
		}
	}
	if len(e.local) > 0 {
		if loc == nil {
			loc = time.Local
		}
		if _, ok := e.local[start.In(loc).Format(dayKeyLayout)]; ok {
			return true
		}
	}
	return false
}

// FormatExclusionUTC renders t as a UTC-suffixed EXDATE entry.
func FormatExclusionUTC(t time.Time) string {
	return t.UTC().Format(exdateUTCLayout)
}

// FormatExclusionLocal renders the calendar day of t in loc as a local EXDATE entry.
func FormatExclusionLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dayKeyLayout)
}
