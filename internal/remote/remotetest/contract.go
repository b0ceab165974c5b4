// Package remotetest holds behaviour every remote store must share.
package remotetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/store"
	"github.com/example/pocketcal/internal/syncengine"
	"github.com/example/pocketcal/internal/testfixtures"
)

// Factory returns an empty remote store.
type Factory func(t *testing.T) syncengine.RemoteStore

// Run exercises the remote store contract against newRemote.
func Run(t *testing.T, newRemote Factory) {
	t.Helper()

	t.Run("calendars", func(t *testing.T) { testCalendars(t, newRemote(t)) })
	t.Run("events", func(t *testing.T) { testEvents(t, newRemote(t)) })
	t.Run("delete missing is not an error", func(t *testing.T) { testDeleteMissing(t, newRemote(t)) })
	t.Run("timestamps keep store precision", func(t *testing.T) { testTimestampPrecision(t, newRemote(t)) })
}

func testCalendars(t *testing.T, remote syncengine.RemoteStore) {
	ctx := context.Background()

	mine := testfixtures.NewCalendarFixture(testfixtures.WithCalendarName("Mine")).Persistence()
	theirs := testfixtures.NewCalendarFixture(testfixtures.WithCalendarUser("user-remote-2")).Persistence()
	require.NoError(t, remote.UpsertCalendar(ctx, mine))
	require.NoError(t, remote.UpsertCalendar(ctx, theirs))

	mine.Name = "Mine (renamed)"
	mine.UpdatedAt = mine.UpdatedAt.Add(time.Hour)
	require.NoError(t, remote.UpsertCalendar(ctx, mine))

	calendars, err := remote.ListCalendars(ctx, testfixtures.DefaultUserID)
	require.NoError(t, err)
	require.Len(t, calendars, 1)
	assert.Equal(t, mine.ID, calendars[0].ID)
	assert.Equal(t, "Mine (renamed)", calendars[0].Name)
	assert.True(t, calendars[0].UpdatedAt.Equal(mine.UpdatedAt), "updated_at must round-trip for last-write-wins")

	event := testfixtures.NewEventFixture(testfixtures.WithEventCalendar(mine.ID)).Persistence()
	require.NoError(t, remote.UpsertEvent(ctx, event))

	require.NoError(t, remote.DeleteCalendar(ctx, testfixtures.DefaultUserID, mine.ID))
	calendars, err = remote.ListCalendars(ctx, testfixtures.DefaultUserID)
	require.NoError(t, err)
	assert.Empty(t, calendars)
	events, err := remote.ListEvents(ctx, testfixtures.DefaultUserID)
	require.NoError(t, err)
	assert.Empty(t, events, "deleting a calendar removes its events")
}

func testEvents(t *testing.T, remote syncengine.RemoteStore) {
	ctx := context.Background()

	calendar := testfixtures.NewCalendarFixture().Persistence()
	require.NoError(t, remote.UpsertCalendar(ctx, calendar))

	start := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	full := testfixtures.NewEventFixture(
		testfixtures.WithEventCalendar(calendar.ID),
		testfixtures.WithEventStartEnd(start, start.Add(time.Hour)),
		testfixtures.WithEventDescription("weekly sync"),
		testfixtures.WithEventLocation("Room 4"),
		testfixtures.WithEventRRule("FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4"),
		testfixtures.WithEventExDate("20240103"),
		testfixtures.WithEventDuration(90*time.Minute),
		testfixtures.WithEventColor("#FF0000"),
		testfixtures.WithEventLastModified(start.Add(-time.Hour)),
	).Persistence()
	bare := testfixtures.NewEventFixture(testfixtures.WithEventCalendar(calendar.ID)).Persistence()
	require.NoError(t, remote.UpsertEvent(ctx, full))
	require.NoError(t, remote.UpsertEvent(ctx, bare))

	full.Summary = "Renamed"
	full.LastModified = full.LastModified.Add(time.Minute)
	require.NoError(t, remote.UpsertEvent(ctx, full))

	events, err := remote.ListEvents(ctx, testfixtures.DefaultUserID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	byUID := map[string]persistence.Event{}
	for _, e := range events {
		byUID[e.UID] = e
	}
	got, ok := byUID[full.UID]
	require.True(t, ok)
	assert.Equal(t, "Renamed", got.Summary)
	assert.Equal(t, calendar.ID, got.CalendarID)
	assert.True(t, got.Start.Equal(full.Start))
	assert.True(t, got.End.Equal(full.End))
	assert.True(t, got.LastModified.Equal(full.LastModified))
	require.NotNil(t, got.RRule)
	assert.Equal(t, *full.RRule, *got.RRule)
	require.NotNil(t, got.ExDate)
	assert.Equal(t, "20240103", *got.ExDate)
	require.NotNil(t, got.Duration)
	assert.Equal(t, 90*time.Minute, *got.Duration)
	require.NotNil(t, got.Description)
	assert.Equal(t, "weekly sync", *got.Description)

	plain, ok := byUID[bare.UID]
	require.True(t, ok)
	assert.Nil(t, plain.RRule)
	assert.Nil(t, plain.Duration)
	assert.Nil(t, plain.Location)

	require.NoError(t, remote.DeleteEvent(ctx, testfixtures.DefaultUserID, bare.UID))
	events, err = remote.ListEvents(ctx, testfixtures.DefaultUserID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, full.UID, events[0].UID)

	others, err := remote.ListEvents(ctx, "user-remote-2")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func testDeleteMissing(t *testing.T, remote syncengine.RemoteStore) {
	ctx := context.Background()
	assert.NoError(t, remote.DeleteEvent(ctx, testfixtures.DefaultUserID, "missing-event"))
	assert.NoError(t, remote.DeleteCalendar(ctx, testfixtures.DefaultUserID, "missing-calendar"))
}

// testTimestampPrecision checks that a stamp written by the local store comes
// back unchanged, and that finer stamps lose nothing above store.StampPrecision.
func testTimestampPrecision(t *testing.T, remote syncengine.RemoteStore) {
	ctx := context.Background()

	fine := testfixtures.ReferenceTime().Add(123456789 * time.Nanosecond)
	aligned := fine.Truncate(store.StampPrecision)

	calendar := testfixtures.NewCalendarFixture(testfixtures.WithCalendarUpdatedAt(aligned)).Persistence()
	require.NoError(t, remote.UpsertCalendar(ctx, calendar))
	stamped := testfixtures.NewEventFixture(
		testfixtures.WithEventCalendar(calendar.ID),
		testfixtures.WithEventLastModified(aligned),
	).Persistence()
	require.NoError(t, remote.UpsertEvent(ctx, stamped))
	raw := testfixtures.NewEventFixture(
		testfixtures.WithEventCalendar(calendar.ID),
		testfixtures.WithEventLastModified(fine),
	).Persistence()
	require.NoError(t, remote.UpsertEvent(ctx, raw))

	calendars, err := remote.ListCalendars(ctx, testfixtures.DefaultUserID)
	require.NoError(t, err)
	require.Len(t, calendars, 1)
	assert.True(t, calendars[0].UpdatedAt.Equal(aligned), "calendar updated_at %s, want %s", calendars[0].UpdatedAt, aligned)

	events, err := remote.ListEvents(ctx, testfixtures.DefaultUserID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		switch e.UID {
		case stamped.UID:
			assert.True(t, e.LastModified.Equal(aligned), "last_modified %s, want %s", e.LastModified, aligned)
		case raw.UID:
			assert.True(t, e.LastModified.Truncate(store.StampPrecision).Equal(aligned), "last_modified %s lost more than sub-microsecond digits", e.LastModified)
		default:
			t.Fatalf("unexpected event %s", e.UID)
		}
	}
}
