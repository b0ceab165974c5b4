package recurrence

import (
	"testing"
	"time"
)

func BenchmarkGeneratorWeekdays(b *testing.B) {
	generator := NewGenerator(time.UTC, 0)
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	rule := "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR;UNTIL=20240806T000000Z"
	def := Definition{
		UID:   "bench",
		Title: "Standup",
		Start: start,
		End:   start.Add(90 * time.Minute),
		RRule: &rule,
	}
	rangeStart := start.AddDate(0, 1, 0)
	rangeEnd := rangeStart.AddDate(0, 0, 14)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if len(generator.Generate(def, rangeStart, rangeEnd)) == 0 {
			b.Fatal("expected instances to be generated")
		}
	}
}

func BenchmarkGeneratorDailyForever(b *testing.B) {
	generator := NewGenerator(time.UTC, 0)
	start := time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)
	rule := "FREQ=DAILY"
	exdate := "20200105,20200110T080000Z"
	def := Definition{
		UID:    "daily",
		Start:  start,
		End:    start.Add(time.Hour),
		RRule:  &rule,
		ExDate: &exdate,
	}
	rangeEnd := start.AddDate(10, 0, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if got := len(generator.Generate(def, start, rangeEnd)); got == 0 || got > DefaultMaxInstances {
			b.Fatalf("unexpected instance count %d", got)
		}
	}
}
