package store_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/pocketcal/internal/metrics"
	"github.com/example/pocketcal/internal/persistence"
	"github.com/example/pocketcal/internal/persistence/memory"
	"github.com/example/pocketcal/internal/recurrence"
	"github.com/example/pocketcal/internal/store"
	"github.com/example/pocketcal/internal/testfixtures"
)

type harness struct {
	store *store.Store
	repo  persistence.Storage
	clock *testfixtures.Clock
	ids   *testfixtures.IDGenerator
	reg   *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo := memory.Open()
	clock := testfixtures.NewTickingClock(testfixtures.ReferenceTime(), time.Second)
	ids := testfixtures.NewIDGenerator("id")
	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	s, err := store.New(repo, store.Options{
		Generator: recurrence.NewGenerator(time.UTC, 0),
		Now:       clock.NowFunc(),
		NewID:     ids.NextFunc(),
		Metrics:   recorder,
	})
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	return &harness{store: s, repo: repo, clock: clock, ids: ids, reg: reg}
}

func TestStore_AddEventStampsPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	input := testfixtures.NewEventFixture(
		testfixtures.WithEventUID(""),
		testfixtures.WithEventStatus(persistence.SyncStatusSynced),
		testfixtures.WithEventLastModified(time.Time{}),
	).Persistence()

	added, err := h.store.AddEvent(ctx, input)
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if added.UID != "id-0001" {
		t.Fatalf("expected generated UID id-0001, got %q", added.UID)
	}
	if added.SyncStatus != persistence.SyncStatusPending {
		t.Fatalf("expected PENDING, got %s", added.SyncStatus)
	}
	if added.LastModified.IsZero() {
		t.Fatal("expected lastModified to be stamped")
	}

	stored, err := h.repo.GetEvent(ctx, added.UID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if stored.SyncStatus != persistence.SyncStatusPending || !stored.LastModified.Equal(added.LastModified) {
		t.Fatalf("stored event mismatch: %#v", stored)
	}

	if _, err := h.store.AddEvent(ctx, stored); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStore_UpdateEventIsMonotonic(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	added, err := h.store.AddEvent(ctx, testfixtures.NewEventFixture().Persistence())
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	// Freeze the clock behind the stored stamp.
	h.clock.Set(added.LastModified.Add(-time.Hour))

	added.Summary = "Renamed"
	updated, err := h.store.UpdateEvent(ctx, added)
	if err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
	if !updated.LastModified.After(added.LastModified) {
		t.Fatalf("expected lastModified after %s, got %s", added.LastModified, updated.LastModified)
	}
	if updated.Summary != "Renamed" || updated.SyncStatus != persistence.SyncStatusPending {
		t.Fatalf("unexpected update: %#v", updated)
	}

	missing := testfixtures.NewEventFixture().Persistence()
	if _, err := h.store.UpdateEvent(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_WithSyncStatusKeepsTimestamps(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	remoteModified := testfixtures.ReferenceTime().Add(-48 * time.Hour)
	event := testfixtures.NewEventFixture(testfixtures.WithEventLastModified(remoteModified)).Persistence()

	added, err := h.store.AddEvent(ctx, event, store.WithSyncStatus(persistence.SyncStatusSynced))
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	if added.SyncStatus != persistence.SyncStatusSynced || !added.LastModified.Equal(remoteModified) {
		t.Fatalf("expected SYNCED copy with remote timestamp, got %#v", added)
	}

	added.Summary = "Remote rename"
	updated, err := h.store.UpdateEvent(ctx, added, store.WithSyncStatus(persistence.SyncStatusSynced))
	if err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
	if !updated.LastModified.Equal(remoteModified) {
		t.Fatalf("expected timestamp %s to be preserved, got %s", remoteModified, updated.LastModified)
	}
}

func TestStore_IfUnmodifiedRejectsNewerEdit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	snapshot, err := h.store.AddEvent(ctx, testfixtures.NewEventFixture(testfixtures.WithEventSummary("old")).Persistence())
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	edited := snapshot
	edited.Summary = "new"
	if _, err := h.store.UpdateEvent(ctx, edited); err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}

	_, err = h.store.UpdateEvent(ctx, snapshot, store.WithSyncStatus(persistence.SyncStatusSynced), store.IfUnmodified(snapshot.LastModified))
	if !errors.Is(err, store.ErrModified) {
		t.Fatalf("expected ErrModified, got %v", err)
	}

	stored, err := h.repo.GetEvent(ctx, snapshot.UID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if stored.Summary != "new" || stored.SyncStatus != persistence.SyncStatusPending {
		t.Fatalf("newer edit was overwritten: %#v", stored)
	}

	marked, err := h.store.UpdateEvent(ctx, stored, store.WithSyncStatus(persistence.SyncStatusSynced), store.IfUnmodified(stored.LastModified))
	if err != nil {
		t.Fatalf("UpdateEvent with current stamp failed: %v", err)
	}
	if marked.SyncStatus != persistence.SyncStatusSynced {
		t.Fatalf("expected SYNCED, got %s", marked.SyncStatus)
	}

	calendar, err := h.store.AddCalendar(ctx, testfixtures.NewCalendarFixture(testfixtures.WithCalendarID("cal-guard")).Persistence())
	if err != nil {
		t.Fatalf("AddCalendar failed: %v", err)
	}
	stale := calendar.UpdatedAt.Add(-time.Second)
	if _, err := h.store.UpdateCalendar(ctx, calendar, store.WithSyncStatus(persistence.SyncStatusSynced), store.IfUnmodified(stale)); !errors.Is(err, store.ErrModified) {
		t.Fatalf("expected ErrModified for calendar, got %v", err)
	}
}

func TestStore_StampsAtMicrosecondPrecision(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := testfixtures.NewTickingClock(testfixtures.ReferenceTime().Add(123456789*time.Nanosecond), 1500*time.Nanosecond)
	s, err := store.New(memory.Open(), store.Options{
		Generator: recurrence.NewGenerator(time.UTC, 0),
		Now:       clock.NowFunc(),
	})
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}

	event, err := s.AddEvent(ctx, testfixtures.NewEventFixture().Persistence())
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	calendar, err := s.AddCalendar(ctx, testfixtures.NewCalendarFixture(testfixtures.WithCalendarID("cal-precision")).Persistence())
	if err != nil {
		t.Fatalf("AddCalendar failed: %v", err)
	}
	updated, err := s.UpdateEvent(ctx, event)
	if err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}

	for name, stamp := range map[string]time.Time{
		"event added":    event.LastModified,
		"calendar added": calendar.UpdatedAt,
		"event updated":  updated.LastModified,
	} {
		if !stamp.Equal(stamp.Truncate(store.StampPrecision)) {
			t.Fatalf("%s: stamp %s has sub-microsecond digits", name, stamp.Format(time.RFC3339Nano))
		}
	}
	if !updated.LastModified.After(event.LastModified) {
		t.Fatalf("expected update stamp after %s, got %s", event.LastModified, updated.LastModified)
	}
}

func TestStore_DeleteAndPurgeEvent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	added, err := h.store.AddEvent(ctx, testfixtures.NewEventFixture().Persistence())
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	if err := h.store.PurgeEvent(ctx, added.UID); !errors.Is(err, store.ErrNotDeleted) {
		t.Fatalf("expected ErrNotDeleted before soft delete, got %v", err)
	}
	if err := h.store.DeleteEvent(ctx, added.UID); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}

	live, err := h.store.ListEvents(ctx, testfixtures.DefaultUserID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("expected deleted event to be hidden, got %d events", len(live))
	}
	deleted, err := h.store.ListEventsByStatus(ctx, testfixtures.DefaultUserID, persistence.SyncStatusDeleted)
	if err != nil {
		t.Fatalf("ListEventsByStatus failed: %v", err)
	}
	if len(deleted) != 1 || deleted[0].UID != added.UID {
		t.Fatalf("expected one DELETED event, got %#v", deleted)
	}

	if err := h.store.PurgeEvent(ctx, added.UID); err != nil {
		t.Fatalf("PurgeEvent failed: %v", err)
	}
	if _, err := h.store.GetEvent(ctx, added.UID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected purged event to be gone, got %v", err)
	}
}

func TestStore_DeleteCalendar(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	def, err := h.store.AddCalendar(ctx, testfixtures.NewCalendarFixture(testfixtures.WithCalendarDefault()).Persistence())
	if err != nil {
		t.Fatalf("AddCalendar default failed: %v", err)
	}
	work, err := h.store.AddCalendar(ctx, testfixtures.NewCalendarFixture().Persistence())
	if err != nil {
		t.Fatalf("AddCalendar failed: %v", err)
	}
	inWork, err := h.store.AddEvent(ctx, testfixtures.NewEventFixture(testfixtures.WithEventCalendar(work.ID)).Persistence())
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}
	inDefault, err := h.store.AddEvent(ctx, testfixtures.NewEventFixture(testfixtures.WithEventCalendar(def.ID)).Persistence())
	if err != nil {
		t.Fatalf("AddEvent failed: %v", err)
	}

	if err := h.store.DeleteCalendar(ctx, def.ID); !errors.Is(err, store.ErrDefaultCalendar) {
		t.Fatalf("expected ErrDefaultCalendar, got %v", err)
	}
	if err := h.store.DeleteCalendar(ctx, work.ID); err != nil {
		t.Fatalf("DeleteCalendar failed: %v", err)
	}

	cascaded, err := h.store.GetEvent(ctx, inWork.UID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if cascaded.SyncStatus != persistence.SyncStatusDeleted {
		t.Fatalf("expected cascaded soft delete, got %s", cascaded.SyncStatus)
	}
	untouched, err := h.store.GetEvent(ctx, inDefault.UID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if untouched.SyncStatus != persistence.SyncStatusPending {
		t.Fatalf("expected event in default calendar untouched, got %s", untouched.SyncStatus)
	}

	calendars, err := h.store.ListCalendars(ctx, testfixtures.DefaultUserID)
	if err != nil {
		t.Fatalf("ListCalendars failed: %v", err)
	}
	if len(calendars) != 1 || calendars[0].ID != def.ID {
		t.Fatalf("expected only the default calendar, got %#v", calendars)
	}

	if err := h.store.PurgeCalendar(ctx, work.ID); err != nil {
		t.Fatalf("PurgeCalendar failed: %v", err)
	}
	if _, err := h.store.GetCalendar(ctx, work.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected purged calendar to be gone, got %v", err)
	}
}

func TestStore_InstancesAreSortedAndCached(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	jan1 := time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)
	if _, err := h.store.AddEvent(ctx, testfixtures.NewEventFixture(
		testfixtures.WithEventUID("weekly"),
		testfixtures.WithEventStartEnd(jan1, jan1.Add(time.Hour)),
		testfixtures.WithEventRRule("FREQ=WEEKLY;BYDAY=MO,WE"),
	).Persistence()); err != nil {
		t.Fatalf("AddEvent weekly failed: %v", err)
	}
	single := time.Date(2024, time.January, 2, 8, 0, 0, 0, time.UTC)
	if _, err := h.store.AddEvent(ctx, testfixtures.NewEventFixture(
		testfixtures.WithEventUID("single"),
		testfixtures.WithEventStartEnd(single, single.Add(30*time.Minute)),
	).Persistence()); err != nil {
		t.Fatalf("AddEvent single failed: %v", err)
	}
	future := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	if _, err := h.store.AddEvent(ctx, testfixtures.NewEventFixture(
		testfixtures.WithEventStartEnd(future, future.Add(time.Hour)),
	).Persistence()); err != nil {
		t.Fatalf("AddEvent future failed: %v", err)
	}

	rangeStart := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)

	instances, err := h.store.Instances(ctx, testfixtures.DefaultUserID, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("Instances failed: %v", err)
	}
	want := []struct {
		uid   string
		start time.Time
	}{
		{"weekly", jan1},
		{"single", single},
		{"weekly", jan1.AddDate(0, 0, 2)},
	}
	if len(instances) != len(want) {
		t.Fatalf("expected %d instances, got %d: %#v", len(want), len(instances), instances)
	}
	for i, w := range want {
		if instances[i].EventUID != w.uid || !instances[i].Start.Equal(w.start) {
			t.Fatalf("instance %d: expected %s@%s, got %s@%s", i, w.uid, w.start, instances[i].EventUID, instances[i].Start)
		}
	}

	if _, err := h.store.Instances(ctx, testfixtures.DefaultUserID, rangeStart, rangeEnd); err != nil {
		t.Fatalf("second Instances failed: %v", err)
	}
	if _, err := h.store.Instances(ctx, "user-002", rangeStart, rangeEnd); err != nil {
		t.Fatalf("Instances for other user failed: %v", err)
	}
	assertCacheLookups(t, h.reg, 1, 2)

	if err := h.store.DeleteEvent(ctx, "single"); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	after, err := h.store.Instances(ctx, testfixtures.DefaultUserID, rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("Instances after delete failed: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("expected cache to be invalidated by delete, got %d instances", len(after))
	}
	assertCacheLookups(t, h.reg, 1, 3)
}

func TestStore_InstancesRejectsEmptyRange(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	at := testfixtures.ReferenceTime()
	if _, err := h.store.Instances(context.Background(), testfixtures.DefaultUserID, at, at); !errors.Is(err, store.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func assertCacheLookups(t *testing.T, reg *prometheus.Registry, hits, misses int) {
	t.Helper()

	expected := fmt.Sprintf(`# HELP pocketcal_instance_cache_total Instance cache lookups by result.
# TYPE pocketcal_instance_cache_total counter
pocketcal_instance_cache_total{result="hit"} %d
pocketcal_instance_cache_total{result="miss"} %d
`, hits, misses)
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "pocketcal_instance_cache_total"); err != nil {
		t.Fatalf("unexpected cache metrics: %v", err)
	}
}
