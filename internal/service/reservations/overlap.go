package reservations

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"parkshare/backend/internal/domain"
	"parkshare/backend/internal/store"
)

// CheckOverlap scans every active reservation on the resource, in end time order, and
// returns store.ErrConflict on the first one that collides with cand. Reservations
// whose ids are in ignore are skipped.
func CheckOverlap(ctx context.Context, tx store.ReservationTx, resourceID uuid.UUID, cand domain.Window, now time.Time, ignore ...uuid.UUID) error {
	active, err := tx.ListActive(ctx, resourceID, now)
	if err != nil {
		return err
	}

	for _, existing := range active {
		if slices.Contains(ignore, existing.ID) {
			continue
		}
		hit, err := collides(ctx, tx, existing, cand)
		if err != nil {
			return err
		}
		if hit {
			return store.ErrConflict
		}
	}
	return nil
}

func collides(ctx context.Context, tx store.ReservationTx, existing domain.Reservation, cand domain.Window) (bool, error) {
	switch existing.Recurrence {
	case domain.RecurrenceNone, "":
		return domain.DateOverlap(existing.StartTime, existing.EndTime, cand.Start, cand.End), nil
	case domain.RecurrenceDaily, domain.RecurrenceWeekly, domain.RecurrenceBiweekly, domain.RecurrenceMonthly:
	default:
		return false, fmt.Errorf("%w: reservation %s has %q", domain.ErrInvalidPattern, existing.ID, existing.Recurrence)
	}

	first := existing.FirstOccurrence()
	if domain.DateOverlap(first.Start, first.End, cand.Start, cand.End) {
		return true, nil
	}
	until, bounded := existing.Until()

	if existing.Recurrence == domain.RecurrenceDaily {
		if bounded && cand.Start.After(until) {
			return false, nil
		}
		covered, err := HasCoveringExclusion(ctx, tx, existing, cand, MatchCandidateDate)
		if err != nil || covered {
			return false, err
		}
		return domain.TimeOverlap(
			domain.TimeOfDayOf(first.Start), domain.TimeOfDayOf(first.End),
			domain.TimeOfDayOf(cand.Start), domain.TimeOfDayOf(cand.End),
		), nil
	}

	covered, err := HasCoveringExclusion(ctx, tx, existing, cand, MatchAnchorDate)
	if err != nil || covered {
		return false, err
	}
	return existing.Recurrence.WalkOverlaps(first, cand, until)
}
