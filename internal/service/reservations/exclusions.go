package reservations

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"

	"parkshare/backend/internal/domain"
	"parkshare/backend/internal/store"
)

// MatchMode selects which date an exclusion must fall on to carve a candidate out of a series.
type MatchMode int

const (
	// MatchCandidateDate accepts an exclusion on the candidate's own date, and also one
	// on the anchor occurrence's date. Used for daily series.
	MatchCandidateDate MatchMode = iota
	// MatchAnchorDate only accepts an exclusion recorded against the anchor occurrence.
	MatchAnchorDate
)

// CreateExclusion clones the series into a standalone record overriding one occurrence
// and appends it to the series' exclusion list. The override must carry a window.
func CreateExclusion(ctx context.Context, tx store.ReservationTx, seriesID uuid.UUID, override Patch) (uuid.UUID, error) {
	window, ok := override.Window()
	if !ok {
		return uuid.Nil, validationError("start_time and end_time are required")
	}
	if !window.End.After(window.Start) {
		return uuid.Nil, validationError("end_time must be after start_time")
	}

	series, err := tx.GetReservation(ctx, seriesID)
	if err != nil {
		return uuid.Nil, err
	}
	if err := requireSeries(series); err != nil {
		return uuid.Nil, err
	}

	ex := detachedClone(series)
	ex.Recurrence = domain.RecurrenceNone
	override.applyTo(&ex)

	created, err := tx.InsertReservation(ctx, ex)
	if err != nil {
		return uuid.Nil, err
	}

	series.Exclusions = append(series.Exclusions, created.ID)
	if err := tx.UpdateReservation(ctx, series); err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}

// DeleteExclusion removes the exclusion record and pulls it from the series' list.
func DeleteExclusion(ctx context.Context, tx store.ReservationTx, seriesID, exclusionID uuid.UUID) error {
	if err := tx.DeleteReservation(ctx, exclusionID); err != nil {
		return err
	}

	series, err := tx.GetReservation(ctx, seriesID)
	if err != nil {
		return err
	}
	idx := slices.Index(series.Exclusions, exclusionID)
	if idx < 0 {
		return nil
	}
	series.Exclusions = slices.Delete(series.Exclusions, idx, idx+1)
	return tx.UpdateReservation(ctx, series)
}

// HasCoveringExclusion reports whether one of the series' exclusions carves cand out of
// it: the exclusion's wall-clock window must overlap cand, and its start and end dates
// must match the dates selected by mode.
func HasCoveringExclusion(ctx context.Context, tx store.ReservationTx, series domain.Reservation, cand domain.Window, mode MatchMode) (bool, error) {
	anchorEnd := series.FirstOccurrence().End

	for _, id := range series.Exclusions {
		ex, err := tx.GetReservation(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}

		if !domain.TimeOverlap(
			domain.TimeOfDayOf(ex.StartTime), domain.TimeOfDayOf(ex.EndTime),
			domain.TimeOfDayOf(cand.Start), domain.TimeOfDayOf(cand.End),
		) {
			continue
		}

		if mode == MatchCandidateDate &&
			domain.SameDate(ex.StartTime, cand.Start) && domain.SameDate(ex.EndTime, cand.End) {
			return true, nil
		}
		if domain.SameDate(ex.StartTime, series.StartTime) && domain.SameDate(ex.EndTime, anchorEnd) {
			return true, nil
		}
	}
	return false, nil
}
