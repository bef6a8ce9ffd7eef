package reservations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkshare/backend/internal/clock"
	"parkshare/backend/internal/domain"
	"parkshare/backend/internal/notify"
	"parkshare/backend/internal/store"
	"parkshare/backend/internal/store/memory"
)

var (
	resourceID = uuid.MustParse("00000000-0000-0000-0000-00000000a001")
	owner      = Actor{ID: "owner-1"}
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	clock    *clock.Fake
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC))
	st := memory.New(clk)
	n := &recordingNotifier{}
	return fixture{
		svc:      NewService(st, WithClock(clk), WithNotifier(n)),
		store:    st,
		clock:    clk,
		notifier: n,
	}
}

func dec(day, hour int) time.Time {
	return time.Date(2023, 12, day, hour, 0, 0, 0, time.UTC)
}

func (f fixture) create(t *testing.T, start, end time.Time, recurrence string) domain.Reservation {
	t.Helper()
	r, err := f.svc.Create(context.Background(), CreateInput{
		ResourceID: resourceID,
		OwnerID:    owner.ID,
		StartTime:  start,
		EndTime:    end,
		Price:      10,
		Recurrence: recurrence,
	})
	require.NoError(t, err)
	return r
}

func (f fixture) tryCreate(start, end time.Time, recurrence string) error {
	_, err := f.svc.Create(context.Background(), CreateInput{
		ResourceID: resourceID,
		OwnerID:    "owner-2",
		StartTime:  start,
		EndTime:    end,
		Recurrence: recurrence,
	})
	return err
}

func (f fixture) active(t *testing.T) []domain.Reservation {
	t.Helper()
	var out []domain.Reservation
	err := f.store.InResourceTransaction(context.Background(), resourceID, func(ctx context.Context, tx store.ReservationTx) error {
		var err error
		out, err = tx.ListActive(ctx, resourceID, f.clock.Now())
		return err
	})
	require.NoError(t, err)
	return out
}

func (f fixture) get(t *testing.T, id uuid.UUID) domain.Reservation {
	t.Helper()
	r, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	return r
}

func TestCreate_SequentialNonOverlappingWindowsSucceed(t *testing.T) {
	f := newFixture(t)
	for day := 1; day <= 6; day++ {
		f.create(t, dec(day, 10), dec(day, 11), "")
	}
	assert.Len(t, f.active(t), 6)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
		msg  string
	}{
		{
			name: "missing owner",
			in:   CreateInput{ResourceID: resourceID, StartTime: dec(1, 10), EndTime: dec(1, 11)},
			msg:  "owner_id is required",
		},
		{
			name: "missing resource",
			in:   CreateInput{OwnerID: "o", StartTime: dec(1, 10), EndTime: dec(1, 11)},
			msg:  "resource_id is required",
		},
		{
			name: "end before start",
			in:   CreateInput{ResourceID: resourceID, OwnerID: "o", StartTime: dec(1, 11), EndTime: dec(1, 10)},
			msg:  "end_time must be after start_time",
		},
		{
			name: "negative price",
			in:   CreateInput{ResourceID: resourceID, OwnerID: "o", StartTime: dec(1, 10), EndTime: dec(1, 11), Price: -1},
			msg:  "price must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.in)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "error type = %T", err)
			assert.Equal(t, tt.msg, vErr.Error())
		})
	}

	_, err := f.svc.Create(ctx, CreateInput{
		ResourceID: resourceID, OwnerID: "o", StartTime: dec(1, 10), EndTime: dec(1, 11), Recurrence: "yearly",
	})
	require.ErrorIs(t, err, domain.ErrInvalidPattern)
	assert.Empty(t, f.active(t))
}

func TestCreate_RecurringStoresSentinelEnd(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, dec(1, 10), dec(1, 11), "daily")

	assert.Equal(t, domain.RecurrenceDaily, r.Recurrence)
	assert.Equal(t, domain.SentinelYear, r.EndTime.Year())
	assert.Equal(t, time.December, r.EndTime.Month())
	assert.Equal(t, 11, r.EndTime.Hour())
	assert.Empty(t, r.Exclusions)
}

func TestCreate_DailySeriesConflicts(t *testing.T) {
	f := newFixture(t)
	f.create(t, dec(1, 10), dec(1, 11), "daily")

	require.ErrorIs(t, f.tryCreate(dec(2, 10), dec(2, 11), ""), store.ErrConflict)
	require.ErrorIs(t, f.tryCreate(dec(2, 10), dec(2, 11), "daily"), store.ErrConflict)
	// The wall-clock rule never clears a window against a daily series.
	require.ErrorIs(t, f.tryCreate(dec(2, 11), dec(2, 12), ""), store.ErrConflict)

	assert.Len(t, f.active(t), 1)
}

func TestCreate_WeeklySeriesWalk(t *testing.T) {
	f := newFixture(t)
	f.create(t, dec(1, 10), dec(1, 11), "weekly")

	require.ErrorIs(t, f.tryCreate(dec(8, 10), dec(8, 11), ""), store.ErrConflict)
	require.ErrorIs(t, f.tryCreate(dec(22, 10), dec(22, 11), ""), store.ErrConflict)
	require.NoError(t, f.tryCreate(dec(7, 10), dec(7, 11), ""))
}

func TestCreate_BiweeklyAndMonthlySeriesWalk(t *testing.T) {
	f := newFixture(t)
	f.create(t, dec(1, 10), dec(1, 11), "biweekly")

	require.NoError(t, f.tryCreate(dec(8, 10), dec(8, 11), ""))
	require.ErrorIs(t, f.tryCreate(dec(15, 10), dec(15, 11), ""), store.ErrConflict)

	g := newFixture(t)
	g.create(t, dec(1, 10), dec(1, 11), "monthly")

	feb1 := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	feb2 := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	require.ErrorIs(t, g.tryCreate(feb1, feb1.Add(time.Hour), ""), store.ErrConflict)
	require.NoError(t, g.tryCreate(feb2, feb2.Add(time.Hour), ""))
}

func TestCreate_PastReservationsAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.create(t, dec(1, 10), dec(1, 11), "")

	f.clock.Set(dec(2, 0))
	require.NoError(t, f.tryCreate(dec(1, 10), dec(1, 11), ""))
}

func TestCreateGet_RoundTrip(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, dec(1, 10), dec(1, 11), "")

	got := f.get(t, created.ID)
	assert.Equal(t, created, got)
	assert.Equal(t, []notify.Kind{notify.KindCreated, notify.KindCreated}, f.notifier.kinds())

	owned, err := f.store.ListByOwner(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, created.ID, owned[0].ID)
}

func TestCancel_PlainRemovesReservation(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, dec(1, 10), dec(1, 11), "")

	require.NoError(t, f.svc.Cancel(context.Background(), CancelInput{ID: created.ID, Actor: owner}))

	_, err := f.svc.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	owned, err := f.store.ListByOwner(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)

	events := f.notifier.events
	require.Len(t, events, 4)
	assert.Equal(t, notify.KindCancelled, events[2].Kind)
	assert.Equal(t, notify.AudienceOwner, events[2].Audience)
	assert.Equal(t, notify.AudienceProvider, events[3].Audience)

	require.NoError(t, f.tryCreate(dec(1, 10), dec(1, 11), ""))
}

func TestCancel_SingleOccurrenceOfDailySeries(t *testing.T) {
	f := newFixture(t)
	series := f.create(t, dec(1, 10), dec(1, 11), "daily")

	err := f.svc.Cancel(context.Background(), CancelInput{
		ID:        series.ID,
		Type:      CancelSingle,
		Actor:     owner,
		StartTime: dec(3, 10),
		EndTime:   dec(3, 11),
	})
	require.NoError(t, err)

	head := f.get(t, series.ID)
	assert.Equal(t, dec(2, 11), head.EndTime)
	assert.Empty(t, head.Exclusions)
	require.NotNil(t, head.ChildID)

	cont := f.get(t, *head.ChildID)
	assert.Equal(t, dec(4, 10), cont.StartTime)
	assert.Equal(t, dec(4, 11), cont.EndTime)
	assert.Equal(t, domain.RecurrenceDaily, cont.Recurrence)
	assert.Empty(t, cont.Exclusions)
	require.NotNil(t, cont.ParentID)
	assert.Equal(t, series.ID, *cont.ParentID)
	assert.Nil(t, cont.ChildID)

	assert.Len(t, f.active(t), 2, "transient exclusion must not survive")
}

func TestCancel_FutureOccurrencesOfDailySeries(t *testing.T) {
	f := newFixture(t)
	series := f.create(t, dec(1, 10), dec(1, 11), "daily")

	err := f.svc.Cancel(context.Background(), CancelInput{
		ID:        series.ID,
		Type:      CancelFuture,
		Actor:     owner,
		StartTime: dec(3, 10),
		EndTime:   dec(3, 11),
	})
	require.NoError(t, err)

	head := f.get(t, series.ID)
	assert.Equal(t, dec(2, 11), head.EndTime)
	assert.Nil(t, head.ChildID)
	assert.Empty(t, head.Exclusions)

	active := f.active(t)
	require.Len(t, active, 1)
	assert.Equal(t, series.ID, active[0].ID)
}

func TestCreate_SeriesCrossingNewYear(t *testing.T) {
	f := newFixture(t)
	f.create(t, dec(31, 23), time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), "weekly")

	mar6 := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.tryCreate(mar6, mar6.Add(time.Hour), ""))

	jan7 := time.Date(2024, 1, 7, 23, 30, 0, 0, time.UTC)
	require.ErrorIs(t, f.tryCreate(jan7, jan7.Add(time.Hour), ""), store.ErrConflict)
}

func TestCreate_LeapDaySeries(t *testing.T) {
	f := newFixture(t)
	feb29 := time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC)
	series := f.create(t, feb29, feb29.Add(time.Hour), "weekly")
	assert.Equal(t, time.Date(domain.SentinelYear, 2, 28, 11, 0, 0, 0, time.UTC), series.EndTime)

	mar1 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.tryCreate(mar1, mar1.Add(time.Hour), ""))

	mar7 := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	require.ErrorIs(t, f.tryCreate(mar7, mar7.Add(time.Hour), ""), store.ErrConflict)
}

func TestCancel_ContinuationStaysActiveAfterFirstOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	series := f.create(t, dec(1, 10), dec(1, 11), "weekly")

	err := f.svc.Cancel(ctx, CancelInput{
		ID:        series.ID,
		Type:      CancelSingle,
		Actor:     owner,
		StartTime: dec(8, 10),
		EndTime:   dec(8, 11),
	})
	require.NoError(t, err)
	head := f.get(t, series.ID)
	assert.True(t, head.Truncated)
	require.NotNil(t, head.ChildID)

	f.clock.Set(dec(20, 0))

	active := f.active(t)
	require.Len(t, active, 1)
	assert.Equal(t, *head.ChildID, active[0].ID)
	assert.False(t, active[0].Truncated)

	require.ErrorIs(t, f.tryCreate(dec(29, 10), dec(29, 11), ""), store.ErrConflict)

	done, err := f.svc.ListCompleted(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, series.ID, done[0].ID)
}

func TestCancel_FutureOccurrencesOfWeeklySeriesFreeLaterSlots(t *testing.T) {
	f := newFixture(t)
	series := f.create(t, dec(1, 10), dec(1, 11), "weekly")

	err := f.svc.Cancel(context.Background(), CancelInput{
		ID:        series.ID,
		Type:      CancelFuture,
		Actor:     owner,
		StartTime: dec(15, 10),
		EndTime:   dec(15, 11),
	})
	require.NoError(t, err)

	head := f.get(t, series.ID)
	assert.Equal(t, dec(8, 11), head.EndTime)
	assert.True(t, head.Truncated)

	require.ErrorIs(t, f.tryCreate(dec(8, 10), dec(8, 11), ""), store.ErrConflict)
	for _, day := range []int{4, 15, 22} {
		require.NoError(t, f.tryCreate(dec(day, 10), dec(day, 11), ""), "dec %d", day)
	}
}

func TestCancel_TargetNotAfterFirstOccurrenceIsRejected(t *testing.T) {
	for _, day := range []int{1, 8} {
		t.Run(fmt.Sprintf("dec %d", day), func(t *testing.T) {
			f := newFixture(t)
			series := f.create(t, dec(8, 10), dec(8, 11), "weekly")
			before := f.get(t, series.ID)

			for _, typ := range []CancelType{CancelSingle, CancelFuture} {
				err := f.svc.Cancel(context.Background(), CancelInput{
					ID:        series.ID,
					Type:      typ,
					Actor:     owner,
					StartTime: dec(day, 10),
					EndTime:   dec(day, 11),
				})
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr, "%s cancel", typ)
			}

			assert.Equal(t, before, f.get(t, series.ID))
			assert.Len(t, f.active(t), 1)
		})
	}
}

func TestCancel_TargetPastTruncatedSeriesIsRejected(t *testing.T) {
	f := newFixture(t)
	series := f.create(t, dec(1, 10), dec(1, 11), "weekly")
	cancel := func(typ CancelType, day int) error {
		return f.svc.Cancel(context.Background(), CancelInput{
			ID:        series.ID,
			Type:      typ,
			Actor:     owner,
			StartTime: dec(day, 10),
			EndTime:   dec(day, 11),
		})
	}
	require.NoError(t, cancel(CancelFuture, 15))

	var vErr *ValidationError
	require.ErrorAs(t, cancel(CancelSingle, 22), &vErr)
	assert.Equal(t, dec(8, 11), f.get(t, series.ID).EndTime)
}

func TestCancel_SingleOccurrenceOfMonthlySeries(t *testing.T) {
	f := newFixture(t)
	jan1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	series := f.create(t, jan1, jan1.Add(time.Hour), "monthly")

	mar1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	err := f.svc.Cancel(context.Background(), CancelInput{
		ID:        series.ID,
		Type:      CancelSingle,
		Actor:     owner,
		StartTime: mar1,
		EndTime:   mar1.Add(time.Hour),
	})
	require.NoError(t, err)

	head := f.get(t, series.ID)
	assert.Equal(t, time.Date(2024, 2, 1, 11, 0, 0, 0, time.UTC), head.EndTime)
	require.NotNil(t, head.ChildID)

	cont := f.get(t, *head.ChildID)
	assert.Equal(t, time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC), cont.StartTime)
	assert.Equal(t, time.Date(2024, 4, 1, 11, 0, 0, 0, time.UTC), cont.EndTime)
}

func TestCancel_SecondSplitIsRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t)
	series := f.create(t, dec(1, 10), dec(1, 11), "weekly")

	cancel := func(day int) error {
		return f.svc.Cancel(context.Background(), CancelInput{
			ID:        series.ID,
			Type:      CancelSingle,
			Actor:     owner,
			StartTime: dec(day, 10),
			EndTime:   dec(day, 11),
		})
	}
	require.NoError(t, cancel(8))
	before := f.get(t, series.ID)

	require.ErrorIs(t, cancel(15), domain.ErrAlreadySplit)

	after := f.get(t, series.ID)
	assert.Equal(t, before, after)
	assert.Len(t, f.active(t), 2)
}

func TestCancel_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plain := f.create(t, dec(1, 10), dec(1, 11), "")

	err := f.svc.Cancel(ctx, CancelInput{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000ff"), Actor: owner})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = f.svc.Cancel(ctx, CancelInput{ID: plain.ID, Actor: Actor{ID: "intruder"}})
	require.ErrorIs(t, err, ErrForbidden)

	err = f.svc.Cancel(ctx, CancelInput{ID: plain.ID, Type: CancelSingle, Actor: owner, StartTime: dec(1, 10), EndTime: dec(1, 11)})
	require.ErrorIs(t, err, domain.ErrNotRecurring)

	err = f.svc.Cancel(ctx, CancelInput{ID: plain.ID, Type: "sometimes", Actor: owner})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	f.get(t, plain.ID)

	require.NoError(t, f.svc.Cancel(ctx, CancelInput{ID: plain.ID, Actor: Actor{ID: "ops", Admin: true}}))
}

func TestUpdate_WeeklySeriesKeepsExclusionAndSplits(t *testing.T) {
	f := newFixture(t)
	series := f.create(t, dec(1, 10), dec(1, 11), "weekly")

	res, err := f.svc.Update(context.Background(), series.ID, owner, Patch{
		StartTime: mo.Some(dec(8, 11)),
		EndTime:   mo.Some(dec(8, 12)),
	})
	require.NoError(t, err)
	assert.Equal(t, series.ID, res.ID)

	head := f.get(t, series.ID)
	assert.Equal(t, dec(1, 11), head.EndTime)
	assert.Equal(t, []uuid.UUID{res.ExclusionID}, head.Exclusions)
	require.NotNil(t, head.ChildID)
	assert.Equal(t, res.ContinuationID, *head.ChildID)

	ex := f.get(t, res.ExclusionID)
	require.NotNil(t, ex.ParentID)
	assert.Equal(t, series.ID, *ex.ParentID)
	assert.Equal(t, dec(8, 11), ex.StartTime)
	assert.Equal(t, dec(8, 12), ex.EndTime)
	assert.Equal(t, domain.RecurrenceNone, ex.Recurrence)
	assert.True(t, ex.IsExclusion())

	cont := f.get(t, res.ContinuationID)
	assert.Equal(t, dec(15, 10), cont.StartTime)
	assert.Equal(t, dec(15, 11), cont.EndTime)
	require.NotNil(t, cont.ParentID)
	assert.Equal(t, series.ID, *cont.ParentID)
	assert.Empty(t, cont.Exclusions)
	assert.Equal(t, domain.RecurrenceWeekly, cont.Recurrence)

	assert.Contains(t, f.notifier.kinds(), notify.KindUpdated)
}

func TestUpdate_RecurringRequiresWindow(t *testing.T) {
	f := newFixture(t)
	series := f.create(t, dec(1, 10), dec(1, 11), "weekly")

	_, err := f.svc.Update(context.Background(), series.ID, owner, Patch{Price: mo.Some(20.0)})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	head := f.get(t, series.ID)
	assert.Empty(t, head.Exclusions)
	assert.Nil(t, head.ChildID)
}

func TestUpdate_PlainReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, dec(1, 10), dec(1, 11), "")
	second := f.create(t, dec(3, 10), dec(3, 11), "")

	_, err := f.svc.Update(ctx, second.ID, owner, Patch{StartTime: mo.Some(dec(1, 10)), EndTime: mo.Some(dec(1, 11))})
	require.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, dec(3, 10), f.get(t, second.ID).StartTime)

	res, err := f.svc.Update(ctx, second.ID, owner, Patch{StartTime: mo.Some(dec(5, 10)), EndTime: mo.Some(dec(5, 11))})
	require.NoError(t, err)
	assert.Equal(t, second.ID, res.ID)
	assert.Equal(t, uuid.Nil, res.ExclusionID)
	assert.Equal(t, uuid.Nil, res.ContinuationID)

	_, err = f.svc.Update(ctx, first.ID, owner, Patch{Price: mo.Some(25.0), Paid: mo.Some(true)})
	require.NoError(t, err)
	got := f.get(t, first.ID)
	assert.Equal(t, 25.0, got.Price)
	assert.True(t, got.Paid)
	assert.Equal(t, dec(1, 10), got.StartTime)

	_, err = f.svc.Update(ctx, first.ID, owner, Patch{EndTime: mo.Some(dec(1, 9))})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.Update(ctx, first.ID, Actor{ID: "intruder"}, Patch{Paid: mo.Some(false)})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Update(ctx, first.ID, owner, Patch{})
	require.ErrorAs(t, err, &vErr)
}

func TestCancel_AllRemovesSeriesChainAndExclusions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	series := f.create(t, dec(1, 10), dec(1, 11), "weekly")

	res, err := f.svc.Update(ctx, series.ID, owner, Patch{StartTime: mo.Some(dec(8, 11)), EndTime: mo.Some(dec(8, 12))})
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, CancelInput{ID: series.ID, Actor: owner}))

	for _, id := range []uuid.UUID{series.ID, res.ExclusionID, res.ContinuationID} {
		_, err := f.svc.Get(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
	assert.Empty(t, f.active(t))
}

func TestCancel_AllOfContinuationClearsParentChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	series := f.create(t, dec(1, 10), dec(1, 11), "daily")

	require.NoError(t, f.svc.Cancel(ctx, CancelInput{
		ID: series.ID, Type: CancelSingle, Actor: owner, StartTime: dec(3, 10), EndTime: dec(3, 11),
	}))
	contID := *f.get(t, series.ID).ChildID

	require.NoError(t, f.svc.Cancel(ctx, CancelInput{ID: contID, Actor: owner}))

	head := f.get(t, series.ID)
	assert.Nil(t, head.ChildID)
	assert.Equal(t, dec(2, 11), head.EndTime)
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")

	created := f.create(t, dec(1, 10), dec(1, 11), "")
	f.get(t, created.ID)
	assert.Len(t, f.notifier.events, 2)
}

func TestListCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	early := f.create(t, dec(1, 10), dec(1, 11), "")
	f.create(t, dec(20, 10), dec(20, 11), "")
	f.create(t, dec(2, 14), dec(2, 15), "weekly")

	f.clock.Set(dec(10, 0))

	done, err := f.svc.ListCompleted(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, early.ID, done[0].ID)

	_, err = f.svc.ListCompleted(ctx, "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestListOccurrences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	series := f.create(t, dec(1, 10), dec(1, 11), "weekly")

	occs, err := f.svc.ListOccurrences(ctx, series.ID, dec(1, 0), dec(31, 0))
	require.NoError(t, err)
	require.Len(t, occs, 5)
	assert.Equal(t, dec(29, 10), occs[4].StartTime)

	res, err := f.svc.Update(ctx, series.ID, owner, Patch{StartTime: mo.Some(dec(8, 11)), EndTime: mo.Some(dec(8, 12))})
	require.NoError(t, err)

	occs, err = f.svc.ListOccurrences(ctx, series.ID, dec(1, 0), dec(31, 0))
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, dec(1, 10), occs[0].StartTime)
	assert.Equal(t, dec(8, 11), occs[1].StartTime)
	assert.Equal(t, dec(8, 12), occs[1].EndTime)

	occs, err = f.svc.ListOccurrences(ctx, res.ContinuationID, dec(1, 0), dec(31, 0))
	require.NoError(t, err)
	require.Len(t, occs, 3)
	assert.Equal(t, dec(15, 10), occs[0].StartTime)

	_, err = f.svc.ListOccurrences(ctx, res.ExclusionID, dec(1, 0), dec(31, 0))
	require.ErrorIs(t, err, domain.ErrNotRecurring)
}

func TestExportCalendar(t *testing.T) {
	f := newFixture(t)
	series := f.create(t, dec(1, 10), dec(1, 11), "weekly")

	b, err := f.svc.ExportCalendar(context.Background(), series.ID)
	require.NoError(t, err)
	assert.Contains(t, string(b), "BEGIN:VCALENDAR")
	assert.Contains(t, string(b), "RRULE:")
	assert.Contains(t, string(b), "FREQ=WEEKLY")
	assert.Contains(t, string(b), series.ID.String())

	_, err = f.svc.ExportCalendar(context.Background(), uuid.MustParse("00000000-0000-0000-0000-0000000000ff"))
	require.ErrorIs(t, err, store.ErrNotFound)
}
