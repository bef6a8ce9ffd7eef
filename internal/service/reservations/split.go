package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parkshare/backend/internal/domain"
	"parkshare/backend/internal/store"
)

// Split truncates the series so that its last occurrence is the one before target, and
// inserts a continuation series resuming one period after target. Start and end times
// of day are always the series' own. A series that already has a continuation is
// rejected with domain.ErrAlreadySplit; a target at or before the first occurrence, or
// past the last one of a truncated series, is a validation error.
func Split(ctx context.Context, tx store.ReservationTx, seriesID uuid.UUID, target domain.Window) (uuid.UUID, error) {
	series, err := tx.GetReservation(ctx, seriesID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := requireSeries(series); err != nil {
		return uuid.Nil, err
	}
	if series.ChildID != nil {
		return uuid.Nil, fmt.Errorf("%w: %s continues as %s", domain.ErrAlreadySplit, series.ID, *series.ChildID)
	}
	if until, ok := series.Until(); ok && target.Start.After(until) {
		return uuid.Nil, validationError("target occurrence is past the end of the series")
	}

	p := series.Recurrence
	contStartDate, err := p.Step(target.Start, 1)
	if err != nil {
		return uuid.Nil, err
	}
	contEndDate, err := p.Step(target.End, 1)
	if err != nil {
		return uuid.Nil, err
	}
	truncDate, err := p.Step(contEndDate, -2)
	if err != nil {
		return uuid.Nil, err
	}

	startOfDay := domain.TimeOfDayOf(series.StartTime)
	endOfDay := domain.TimeOfDayOf(series.EndTime)
	truncEnd := endOfDay.At(truncDate)
	if !truncEnd.After(series.StartTime) {
		return uuid.Nil, validationError("target occurrence must come after the first occurrence")
	}

	cont := detachedClone(series)
	cont.StartTime = startOfDay.At(contStartDate)
	cont.EndTime = endOfDay.At(contEndDate)

	created, err := tx.InsertReservation(ctx, cont)
	if err != nil {
		return uuid.Nil, err
	}

	child := created.ID
	series.EndTime = truncEnd
	series.Truncated = true
	series.ChildID = &child
	if err := tx.UpdateReservation(ctx, series); err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}

// detachedClone copies the static fields of series into a new record parented by it.
func detachedClone(series domain.Reservation) domain.Reservation {
	out := series.Clone()
	parent := series.ID
	out.ID = uuid.Nil
	out.ParentID = &parent
	out.ChildID = nil
	out.Truncated = false
	out.Exclusions = []uuid.UUID{}
	out.CreatedAt = time.Time{}
	out.UpdatedAt = time.Time{}
	return out
}

func requireSeries(r domain.Reservation) error {
	switch {
	case r.IsSeries():
		return nil
	case r.Recurrence == domain.RecurrenceNone || r.Recurrence == "":
		return fmt.Errorf("%w: %s", domain.ErrNotRecurring, r.ID)
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidPattern, r.Recurrence)
	}
}
