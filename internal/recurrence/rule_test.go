package recurrence

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	until := time.Date(2024, time.December, 31, 23, 59, 59, 0, time.FixedZone("JST", 9*60*60))
	cases := []struct {
		name string
		rule Rule
		want string
	}{
		{"daily endless", Rule{Frequency: FrequencyDaily, Interval: 1}, "FREQ=DAILY"},
		{"interval kept", Rule{Frequency: FrequencyMonthly, Interval: 3, EndType: EndAfterCount, Count: 6}, "FREQ=MONTHLY;INTERVAL=3;COUNT=6"},
		{"byday only for weekly", Rule{Frequency: FrequencyDaily, Interval: 1, Weekdays: []time.Weekday{time.Monday}}, "FREQ=DAILY"},
		{"weekly byday", Rule{Frequency: FrequencyWeekly, Interval: 2, Weekdays: []time.Weekday{time.Monday, time.Friday}}, "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,FR"},
		{"weekly empty byday", Rule{Frequency: FrequencyWeekly, Interval: 1}, "FREQ=WEEKLY"},
		{"until in utc", Rule{Frequency: FrequencyYearly, Interval: 1, EndType: EndUntil, Until: until}, "FREQ=YEARLY;UNTIL=20241231T145959Z"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Encode(tc.rule); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("infers end type", func(t *testing.T) {
		t.Parallel()
		rule, err := Decode("FREQ=WEEKLY;BYDAY=TU,TH;COUNT=4;UNTIL=20240101T000000Z")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if rule.EndType != EndAfterCount || rule.Count != 4 {
			t.Fatalf("expected COUNT to take precedence, got %+v", rule)
		}
		if len(rule.Weekdays) != 2 || rule.Weekdays[0] != time.Tuesday || rule.Weekdays[1] != time.Thursday {
			t.Fatalf("unexpected weekdays %v", rule.Weekdays)
		}

		rule, err = Decode("FREQ=DAILY;UNTIL=20240315T120000Z")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if rule.EndType != EndUntil || !rule.Until.Equal(time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected until rule %+v", rule)
		}
	})

	t.Run("ignores unknown keys", func(t *testing.T) {
		t.Parallel()
		rule, err := Decode("WKST=MO;FREQ=MONTHLY;X-FOO=bar;INTERVAL=2")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if rule.Frequency != FrequencyMonthly || rule.Interval != 2 || rule.EndType != EndNever {
			t.Fatalf("unexpected rule %+v", rule)
		}
	})

	t.Run("malformed until falls back to endless", func(t *testing.T) {
		t.Parallel()
		rule, err := Decode("FREQ=DAILY;UNTIL=2024-03-15")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if rule.EndType != EndNever {
			t.Fatalf("expected endless rule, got %s", rule.EndType)
		}
	})

	t.Run("missing freq fails", func(t *testing.T) {
		t.Parallel()
		for _, text := range []string{"", "COUNT=3", "FREQ=SECONDLY"} {
			_, err := Decode(text)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError for %q, got %v", text, err)
			}
		}
	})

	t.Run("value containing equals splits on first", func(t *testing.T) {
		t.Parallel()
		rule, err := Decode("FREQ=DAILY;X-NOTE=a=b")
		if err != nil || rule.Frequency != FrequencyDaily {
			t.Fatalf("unexpected result %+v, %v", rule, err)
		}
	})
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	until := time.Date(2025, time.June, 30, 18, 0, 0, 0, time.UTC)
	frequencies := []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly}
	daySets := [][]time.Weekday{nil, {time.Sunday}, {time.Monday, time.Wednesday, time.Friday}}
	ends := []Rule{
		{EndType: EndNever},
		{EndType: EndAfterCount, Count: 12},
		{EndType: EndUntil, Until: until},
	}

	for _, freq := range frequencies {
		for _, days := range daySets {
			if freq != FrequencyWeekly && days != nil {
				continue
			}
			for _, end := range ends {
				rule := Rule{Frequency: freq, Interval: 2, Weekdays: days, EndType: end.EndType, Count: end.Count, Until: end.Until}
				text := Encode(rule)
				if strings.Contains(text, "COUNT=") && strings.Contains(text, "UNTIL=") {
					t.Fatalf("encoded both COUNT and UNTIL: %s", text)
				}
				got, err := Decode(text)
				if err != nil {
					t.Fatalf("Decode(%q) failed: %v", text, err)
				}
				if got.Frequency != rule.Frequency || got.Interval != rule.Interval || got.EndType != rule.EndType ||
					got.Count != rule.Count || !got.Until.Equal(rule.Until) || len(got.Weekdays) != len(rule.Weekdays) {
					t.Fatalf("round trip mismatch for %q: %+v vs %+v", text, got, rule)
				}
				for i := range rule.Weekdays {
					if got.Weekdays[i] != rule.Weekdays[i] {
						t.Fatalf("weekday mismatch for %q", text)
					}
				}
			}
		}
	}
}
