package recurrence

import (
	"testing"
	"time"
)

func TestParseExclusions(t *testing.T) {
	t.Parallel()

	ex := ParseExclusions("20240102, 20240105T090000Z,bogus,,20240110T080000")
	if ex.Len() != 3 {
		t.Fatalf("expected 3 buckets, got %d", ex.Len())
	}

	tokyo := time.FixedZone("JST", 9*60*60)
	cases := []struct {
		name  string
		start time.Time
		loc   *time.Location
		want  bool
	}{
		{"local day matches in local zone", time.Date(2024, 1, 2, 23, 0, 0, 0, tokyo), tokyo, true},
		{"local day checked in local zone only", time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC), tokyo, false},
		{"utc entry ignores local calendar day", time.Date(2024, 1, 5, 8, 0, 0, 0, tokyo), tokyo, false},
		{"utc day uses utc calendar day", time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC), tokyo, true},
		{"local timestamp form", time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), time.UTC, true},
		{"other day", time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), time.UTC, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ex.Excludes(tc.start, tc.loc); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFormatExclusion(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("EST", -5*60*60))
	if got := FormatExclusionUTC(ts); got != "20240310T043000Z" {
		t.Fatalf("unexpected utc entry %q", got)
	}
	if got := FormatExclusionLocal(ts, time.FixedZone("EST", -5*60*60)); got != "20240309" {
		t.Fatalf("unexpected local entry %q", got)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Duration{
		"PT1H":       time.Hour,
		"PT1H30M":    90 * time.Minute,
		"P1D":        24 * time.Hour,
		"P1W":        7 * 24 * time.Hour,
		"P1DT2H":     26 * time.Hour,
		"-PT15M":     -15 * time.Minute,
		"pt45s":      45 * time.Second,
		"P2DT0H5M1S": 48*time.Hour + 5*time.Minute + time.Second,
	}
	for text, want := range cases {
		got, err := ParseDuration(text)
		if err != nil {
			t.Fatalf("ParseDuration(%q) failed: %v", text, err)
		}
		if got != want {
			t.Fatalf("ParseDuration(%q): expected %s, got %s", text, want, got)
		}
		if back, err := ParseDuration(FormatDuration(got)); err != nil || back != got {
			t.Fatalf("FormatDuration(%s) did not round trip: %q", got, FormatDuration(got))
		}
	}

	for _, bad := range []string{"", "1H", "PT", "PTH", "P1H", "PT1D", "P1"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
