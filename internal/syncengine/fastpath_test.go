package syncengine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/store"
	"github.com/example/pocketcal/internal/syncengine"
	"github.com/example/pocketcal/internal/testfixtures"
)

func TestPushEvent(t *testing.T) {
	t.Parallel()

	t.Run("success marks synced", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		event := testfixtures.NewEventFixture().Persistence()
		f.seedEvent(t, event)
		f.remote.On("UpsertEvent", mock.Anything, mock.Anything).Return(nil).Once()

		require.NoError(t, f.engine.PushEvent(ctx, event.UID))
		stored, err := f.store.GetEvent(ctx, event.UID)
		require.NoError(t, err)
		assert.Equal(t, persistence.SyncStatusSynced, stored.SyncStatus)
	})

	t.Run("remote failure leaves local unchanged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		event := testfixtures.NewEventFixture().Persistence()
		f.seedEvent(t, event)
		f.remote.On("UpsertEvent", mock.Anything, mock.Anything).Return(errors.New("timeout"))

		err := f.engine.PushEvent(ctx, event.UID)
		var remoteErr *syncengine.RemoteError
		require.ErrorAs(t, err, &remoteErr)

		stored, err := f.store.GetEvent(ctx, event.UID)
		require.NoError(t, err)
		assert.Equal(t, persistence.SyncStatusPending, stored.SyncStatus)
		assert.True(t, stored.LastModified.Equal(event.LastModified))
	})

	t.Run("edit during upload stays pending", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		event := testfixtures.NewEventFixture(testfixtures.WithEventSummary("old")).Persistence()
		f.seedEvent(t, event)
		f.remote.On("UpsertEvent", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				edited := event
				edited.Summary = "new"
				_, err := f.store.UpdateEvent(ctx, edited)
				require.NoError(t, err)
			}).
			Return(nil).Once()

		require.NoError(t, f.engine.PushEvent(ctx, event.UID))
		stored, err := f.store.GetEvent(ctx, event.UID)
		require.NoError(t, err)
		assert.Equal(t, "new", stored.Summary)
		assert.Equal(t, persistence.SyncStatusPending, stored.SyncStatus)
	})
}

func TestPushCalendar(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	calendar := testfixtures.NewCalendarFixture().Persistence()
	require.NoError(t, f.storage.UpsertCalendar(ctx, calendar))
	f.remote.On("UpsertCalendar", mock.Anything, mock.Anything).Return(nil).Once()

	require.NoError(t, f.engine.PushCalendar(ctx, calendar.ID))
	stored, err := f.store.GetCalendar(ctx, calendar.ID)
	require.NoError(t, err)
	assert.Equal(t, persistence.SyncStatusSynced, stored.SyncStatus)
}

func TestDeleteEventFastPath(t *testing.T) {
	t.Parallel()

	t.Run("success removes locally", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		event := testfixtures.NewEventFixture(testfixtures.WithEventStatus(persistence.SyncStatusSynced)).Persistence()
		f.seedEvent(t, event)
		f.remote.On("DeleteEvent", mock.Anything, userID, event.UID).Return(nil).Once()

		require.NoError(t, f.engine.DeleteEvent(ctx, event.UID))
		_, err := f.store.GetEvent(ctx, event.UID)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("remote failure keeps the event", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()
		event := testfixtures.NewEventFixture(testfixtures.WithEventStatus(persistence.SyncStatusSynced)).Persistence()
		f.seedEvent(t, event)
		f.remote.On("DeleteEvent", mock.Anything, userID, event.UID).Return(errors.New("503"))

		require.Error(t, f.engine.DeleteEvent(ctx, event.UID))
		stored, err := f.store.GetEvent(ctx, event.UID)
		require.NoError(t, err)
		assert.Equal(t, persistence.SyncStatusSynced, stored.SyncStatus)
	})
}

func TestDeleteCalendarFastPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	def := testfixtures.NewCalendarFixture(testfixtures.WithCalendarDefault()).Persistence()
	work := testfixtures.NewCalendarFixture().Persistence()
	require.NoError(t, f.storage.UpsertCalendar(ctx, def))
	require.NoError(t, f.storage.UpsertCalendar(ctx, work))
	event := testfixtures.NewEventFixture(testfixtures.WithEventCalendar(work.ID)).Persistence()
	f.seedEvent(t, event)

	err := f.engine.DeleteCalendar(ctx, def.ID)
	assert.ErrorIs(t, err, store.ErrDefaultCalendar)
	f.remote.AssertNotCalled(t, "DeleteCalendar", mock.Anything, mock.Anything, mock.Anything)

	f.remote.On("DeleteCalendar", mock.Anything, userID, work.ID).Return(nil).Once()
	require.NoError(t, f.engine.DeleteCalendar(ctx, work.ID))
	_, err = f.store.GetCalendar(ctx, work.ID)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = f.store.GetEvent(ctx, event.UID)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
