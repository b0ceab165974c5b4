package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	t.Parallel()

	t.Run("plain document", func(t *testing.T) {
		t.Parallel()
		candidates, err := ParseDocument(`{"events":[{"title":"Dentist","date":"2024-03-04","startTime":"09:30","confidence":0.8,"action":"CREATE"}]}`)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "Dentist", candidates[0].Title)
		require.NotNil(t, candidates[0].StartTime)
		assert.Equal(t, "09:30", *candidates[0].StartTime)
		require.NotNil(t, candidates[0].Confidence)
		assert.InDelta(t, 0.8, *candidates[0].Confidence, 1e-9)
	})

	t.Run("fenced with trailing comma", func(t *testing.T) {
		t.Parallel()
		raw := "```json\n{\"events\":[{\"title\":\"Gym\",\"date\":\"2024-03-05\",},]}\n```"
		candidates, err := ParseDocument(raw)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "Gym", candidates[0].Title)
	})

	t.Run("empty events is a valid zero batch", func(t *testing.T) {
		t.Parallel()
		candidates, err := ParseDocument(`{"events":[]}`)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	failures := map[string]string{
		"empty body":     "   ",
		"missing events": `{"items":[]}`,
		"not json":       "I could not find any events in that text.",
	}
	for name, raw := range failures {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseDocument(raw)
			require.Error(t, err)
			assert.True(t, IsParseError(err), "expected ParseError, got %T", err)
		})
	}
}

func TestRuleFromPhrase(t *testing.T) {
	t.Parallel()

	cases := []struct {
		phrase string
		want   string
		ok     bool
	}{
		{"daily", "FREQ=DAILY", true},
		{"Every day", "FREQ=DAILY", true},
		{"weekly", "FREQ=WEEKLY", true},
		{"every other week", "FREQ=WEEKLY;INTERVAL=2", true},
		{"weekdays", "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", true},
		{"every Monday", "FREQ=WEEKLY;BYDAY=MO", true},
		{"every mon and wed", "FREQ=WEEKLY;BYDAY=MO,WE", true},
		{"Tuesdays, Thursdays", "FREQ=WEEKLY;BYDAY=TU,TH", true},
		{"monthly", "FREQ=MONTHLY", true},
		{"every 3 days", "FREQ=DAILY;INTERVAL=3", true},
		{"every 2 months", "FREQ=MONTHLY;INTERVAL=2", true},
		{"annually.", "FREQ=YEARLY", true},
		{"RRULE:FREQ=WEEKLY;BYDAY=FR;COUNT=3", "FREQ=WEEKLY;BYDAY=FR;COUNT=3", true},
		{"FREQ=HOURLY", "", false},
		{"whenever the moon is full", "", false},
		{"every 0 days", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.phrase, func(t *testing.T) {
			t.Parallel()
			got, ok := RuleFromPhrase(tc.phrase)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
