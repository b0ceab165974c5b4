package recurrence

import (
	"testing"
	"time"

	"github.com/teambition/rrule-go"
)

func strPtr(s string) *string { return &s }

func utc(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func starts(instances []Instance) []time.Time {
	out := make([]time.Time, len(instances))
	for i, inst := range instances {
		out[i] = inst.Start
	}
	return out
}

func assertStarts(t *testing.T, got []Instance, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d instances, got %d: %v", len(want), len(got), starts(got))
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) {
			t.Fatalf("instance %d: expected start %s, got %s", i, want[i], got[i].Start)
		}
	}
}

func TestGenerator_NonRecurringOverlap(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	start := utc(2024, time.March, 4, 9, 0)
	end := start.Add(time.Hour)
	def := Definition{UID: "evt-1", Title: "Standup", Start: start, End: end}

	cases := []struct {
		name       string
		rangeStart time.Time
		rangeEnd   time.Time
		want       bool
	}{
		{"range covers event", start.Add(-time.Hour), end.Add(time.Hour), true},
		{"range inside event", start.Add(10 * time.Minute), start.Add(20 * time.Minute), true},
		{"range ends at start", start.Add(-time.Hour), start, false},
		{"range starts at end", end, end.Add(time.Hour), false},
		{"range overlaps tail", start.Add(59 * time.Minute), end.Add(time.Hour), true},
		{"range before event", start.Add(-3 * time.Hour), start.Add(-2 * time.Hour), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := gen.Generate(def, tc.rangeStart, tc.rangeEnd)
			if tc.want != (len(got) == 1) {
				t.Fatalf("expected overlap=%v, got %d instances", tc.want, len(got))
			}
			if tc.want {
				if got[0].IsRecurring {
					t.Fatal("expected non-recurring instance")
				}
				if !got[0].End.Equal(end) || got[0].Title != "Standup" {
					t.Fatalf("unexpected instance %+v", got[0])
				}
			}
		})
	}
}

func TestGenerator_WeeklyByDayScenario(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	def := Definition{
		UID:   "evt-weekly",
		Start: utc(2024, time.January, 1, 9, 0),
		End:   utc(2024, time.January, 1, 10, 0),
		RRule: strPtr("FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4"),
	}

	got := gen.Generate(def, utc(2024, time.January, 1, 0, 0), utc(2024, time.January, 31, 0, 0))
	assertStarts(t, got, []time.Time{
		utc(2024, time.January, 1, 9, 0),
		utc(2024, time.January, 3, 9, 0),
		utc(2024, time.January, 8, 9, 0),
		utc(2024, time.January, 10, 9, 0),
	})
	for _, inst := range got {
		if inst.End.Sub(inst.Start) != time.Hour {
			t.Fatalf("expected one hour instances, got %s", inst.End.Sub(inst.Start))
		}
		if !inst.IsRecurring || inst.EventUID != "evt-weekly" {
			t.Fatalf("unexpected instance %+v", inst)
		}
	}
}

func TestGenerator_WeeklyByDayIgnoresIntervalWithinWeek(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	def := Definition{
		UID:   "evt-biweekly",
		Start: utc(2024, time.January, 1, 9, 0),
		End:   utc(2024, time.January, 1, 10, 0),
		RRule: strPtr("FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE,FR;COUNT=6"),
	}

	got := gen.Generate(def, utc(2024, time.January, 1, 0, 0), utc(2024, time.March, 1, 0, 0))
	assertStarts(t, got, []time.Time{
		utc(2024, time.January, 1, 9, 0),
		utc(2024, time.January, 3, 9, 0),
		utc(2024, time.January, 5, 9, 0),
		utc(2024, time.January, 15, 9, 0),
		utc(2024, time.January, 17, 9, 0),
		utc(2024, time.January, 19, 9, 0),
	})
}

func TestGenerator_WeeklyByDayStartingOffPattern(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	// Saturday start with only Monday listed: the first occurrence is the start itself.
	def := Definition{
		UID:   "evt-sat",
		Start: utc(2024, time.January, 6, 9, 0),
		End:   utc(2024, time.January, 6, 10, 0),
		RRule: strPtr("FREQ=WEEKLY;BYDAY=MO;COUNT=3"),
	}

	got := gen.Generate(def, utc(2024, time.January, 1, 0, 0), utc(2024, time.February, 1, 0, 0))
	assertStarts(t, got, []time.Time{
		utc(2024, time.January, 6, 9, 0),
		utc(2024, time.January, 8, 9, 0),
		utc(2024, time.January, 15, 9, 0),
	})
}

func TestGenerator_CountBound(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	start := utc(2024, time.February, 10, 8, 30)
	def := Definition{
		UID:   "evt-daily",
		Start: start,
		End:   start.Add(30 * time.Minute),
		RRule: strPtr("FREQ=DAILY;COUNT=5"),
	}

	got := gen.Generate(def, utc(2000, time.January, 1, 0, 0), utc(2100, time.January, 1, 0, 0))
	if len(got) != 5 {
		t.Fatalf("expected 5 instances, got %d", len(got))
	}

	def.ExDate = strPtr("20240212")
	got = gen.Generate(def, utc(2000, time.January, 1, 0, 0), utc(2100, time.January, 1, 0, 0))
	if len(got) != 4 {
		t.Fatalf("expected exclusions to count towards COUNT, got %d instances", len(got))
	}
}

func TestGenerator_UntilBound(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	until := utc(2024, time.January, 17, 9, 0)
	def := Definition{
		UID:   "evt-until",
		Start: utc(2024, time.January, 1, 9, 0),
		End:   utc(2024, time.January, 1, 9, 45),
		RRule: strPtr(Encode(Rule{
			Frequency: FrequencyWeekly,
			Interval:  1,
			Weekdays:  []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			EndType:   EndUntil,
			Until:     until,
		})),
	}

	got := gen.Generate(def, utc(2023, time.December, 1, 0, 0), utc(2024, time.June, 1, 0, 0))
	if len(got) != 8 {
		t.Fatalf("expected 8 instances up to and including the until instant, got %d", len(got))
	}
	for _, inst := range got {
		if inst.Start.After(until) {
			t.Fatalf("instance %s starts after until %s", inst.Start, until)
		}
	}
}

func TestGenerator_ExDateExclusion(t *testing.T) {
	t.Parallel()

	start := utc(2024, time.May, 1, 22, 30)
	base := Definition{
		UID:   "evt-ex",
		Start: start,
		End:   start.Add(time.Hour),
		RRule: strPtr("FREQ=DAILY;COUNT=6"),
	}
	rangeStart := utc(2024, time.April, 1, 0, 0)
	rangeEnd := utc(2024, time.June, 1, 0, 0)
	third := utc(2024, time.May, 3, 22, 30)

	cases := []struct {
		name   string
		loc    *time.Location
		exdate string
	}{
		{"utc suffixed", time.UTC, FormatExclusionUTC(third)},
		{"local date", time.UTC, "20240503"},
		{"local date in offset zone", time.FixedZone("JST", 9*60*60), "20240504"},
		{"utc entry ignores local zone", time.FixedZone("JST", 9*60*60), "20240503T000000Z"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gen := NewGenerator(tc.loc, 0)
			def := base
			def.ExDate = strPtr(tc.exdate)

			got := gen.Generate(def, rangeStart, rangeEnd)
			if len(got) != 5 {
				t.Fatalf("expected 5 instances, got %d: %v", len(got), starts(got))
			}
			for _, inst := range got {
				if inst.Start.Equal(third) {
					t.Fatalf("expected %s to be excluded", third)
				}
			}
		})
	}
}

func TestGenerator_SkipsMalformedExDateEntries(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	start := utc(2024, time.May, 1, 9, 0)
	def := Definition{
		UID:    "evt-bad-ex",
		Start:  start,
		End:    start.Add(time.Hour),
		RRule:  strPtr("FREQ=DAILY;COUNT=3"),
		ExDate: strPtr("garbage, 20240502 ,2024-05-03"),
	}

	got := gen.Generate(def, utc(2024, time.May, 1, 0, 0), utc(2024, time.May, 10, 0, 0))
	assertStarts(t, got, []time.Time{start, utc(2024, time.May, 3, 9, 0)})
}

func TestGenerator_UnparseableRuleYieldsNothing(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	start := utc(2024, time.May, 1, 9, 0)
	for _, text := range []string{"INTERVAL=2;COUNT=3", "FREQ=HOURLY", "nonsense"} {
		def := Definition{UID: "evt", Start: start, End: start.Add(time.Hour), RRule: strPtr(text)}
		if got := gen.Generate(def, start.Add(-time.Hour), start.AddDate(1, 0, 0)); len(got) != 0 {
			t.Fatalf("rule %q: expected no instances, got %d", text, len(got))
		}
	}
}

func TestGenerator_MaxInstancesCap(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 10)
	start := utc(2024, time.January, 1, 9, 0)
	def := Definition{UID: "evt", Start: start, End: start.Add(time.Hour), RRule: strPtr("FREQ=DAILY")}

	got := gen.Generate(def, start, start.AddDate(5, 0, 0))
	if len(got) != 10 {
		t.Fatalf("expected cap of 10 instances, got %d", len(got))
	}

	// Occurrences before the window still consume the cap.
	got = gen.Generate(def, start.AddDate(0, 0, 20), start.AddDate(0, 0, 40))
	if len(got) != 0 {
		t.Fatalf("expected cap to stop before the window, got %d", len(got))
	}
}

func TestGenerator_ExplicitDurationWins(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	start := utc(2024, time.January, 1, 9, 0)
	d := 90 * time.Minute
	def := Definition{
		UID:      "evt",
		Start:    start,
		End:      start.Add(time.Hour),
		Duration: &d,
		RRule:    strPtr("FREQ=DAILY;COUNT=2"),
	}

	got := gen.Generate(def, start, start.AddDate(0, 0, 7))
	if len(got) != 2 || got[1].End.Sub(got[1].Start) != d {
		t.Fatalf("expected explicit duration to apply, got %+v", got)
	}

	// An occurrence that started before the window but runs into it is kept.
	got = gen.Generate(def, start.Add(80*time.Minute), start.AddDate(0, 0, 7))
	if len(got) != 2 {
		t.Fatalf("expected first occurrence to reach into window, got %d", len(got))
	}
}

func TestGenerator_MonthlyClampsToMonthEnd(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	start := utc(2024, time.January, 31, 12, 0)
	def := Definition{UID: "evt", Start: start, End: start.Add(time.Hour), RRule: strPtr("FREQ=MONTHLY;COUNT=4")}

	got := gen.Generate(def, start, start.AddDate(1, 0, 0))
	assertStarts(t, got, []time.Time{
		start,
		utc(2024, time.February, 29, 12, 0),
		utc(2024, time.March, 31, 12, 0),
		utc(2024, time.April, 30, 12, 0),
	})
}

func TestGenerator_YearlyLeapDay(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	start := utc(2024, time.February, 29, 0, 0)
	def := Definition{UID: "evt", AllDay: true, Start: start, End: start.AddDate(0, 0, 1), RRule: strPtr("FREQ=YEARLY;COUNT=5")}

	got := gen.Generate(def, start, start.AddDate(10, 0, 0))
	assertStarts(t, got, []time.Time{
		start,
		utc(2025, time.February, 28, 0, 0),
		utc(2026, time.February, 28, 0, 0),
		utc(2027, time.February, 28, 0, 0),
		utc(2028, time.February, 29, 0, 0),
	})
	if !got[0].AllDay {
		t.Fatal("expected all-day flag to carry through")
	}
}

func TestGenerator_MatchesReferenceExpansion(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	start := utc(2024, time.March, 4, 7, 15)
	rules := []string{
		"FREQ=DAILY;COUNT=20",
		"FREQ=DAILY;INTERVAL=3;COUNT=15",
		"FREQ=WEEKLY;COUNT=10",
		"FREQ=WEEKLY;INTERVAL=2;COUNT=10",
		"FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=12",
		"FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR,SA,SU;COUNT=21",
		"FREQ=MONTHLY;INTERVAL=2;COUNT=8",
		"FREQ=YEARLY;COUNT=4",
	}

	for _, text := range rules {
		text := text
		t.Run(text, func(t *testing.T) {
			t.Parallel()
			opt, err := rrule.StrToROption(text)
			if err != nil {
				t.Fatalf("StrToROption failed: %v", err)
			}
			opt.Dtstart = start
			ref, err := rrule.NewRRule(*opt)
			if err != nil {
				t.Fatalf("NewRRule failed: %v", err)
			}
			want := ref.All()

			def := Definition{UID: "evt", Start: start, End: start.Add(time.Hour), RRule: strPtr(text)}
			got := gen.Generate(def, start, start.AddDate(20, 0, 0))
			assertStarts(t, got, want)
		})
	}
}

func TestGenerator_RejectsEmptyRange(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	start := utc(2024, time.January, 1, 9, 0)
	def := Definition{UID: "evt", Start: start, End: start.Add(time.Hour)}
	if got := gen.Generate(def, start, start); len(got) != 0 {
		t.Fatalf("expected empty range to produce nothing, got %d", len(got))
	}
}

func TestGenerateAll_SortsAcrossEvents(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(time.UTC, 0)
	day := utc(2024, time.January, 1, 0, 0)
	defs := []Definition{
		{UID: "b", Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour), RRule: strPtr("FREQ=DAILY;COUNT=2")},
		{UID: "a", Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour)},
		{UID: "c", Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
	}

	got := gen.GenerateAll(defs, day, day.AddDate(0, 0, 3))
	var order []string
	for _, inst := range got {
		order = append(order, inst.EventUID)
	}
	want := []string{"a", "b", "c", "b"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}
