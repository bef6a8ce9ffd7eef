package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
	ErrNotRecurring   = errors.New("reservation is not recurring")
	ErrAlreadySplit   = errors.New("series already has a continuation")
)

type Recurrence string

const (
	RecurrenceNone     Recurrence = "none"
	RecurrenceDaily    Recurrence = "daily"
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceBiweekly Recurrence = "biweekly"
	RecurrenceMonthly  Recurrence = "monthly"
)

// ParseRecurrence accepts the four patterns plus "" or "none" for a plain reservation.
func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case "", RecurrenceNone:
		return RecurrenceNone, nil
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	}
}

func (r Recurrence) IsRecurring() bool {
	switch r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Step moves t by n periods of the pattern. Monthly steps keep the day of month,
// clamped to the last day of shorter months.
func (r Recurrence) Step(t time.Time, n int) (time.Time, error) {
	switch r {
	case RecurrenceDaily:
		return t.AddDate(0, 0, n), nil
	case RecurrenceWeekly:
		return t.AddDate(0, 0, 7*n), nil
	case RecurrenceBiweekly:
		return t.AddDate(0, 0, 14*n), nil
	case RecurrenceMonthly:
		return addMonths(t, n), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q has no period", ErrInvalidPattern, r)
	}
}

// WalkOverlaps steps the anchor occurrence forward one period at a time and reports
// whether any stepped occurrence overlaps cand. The walk stops once a stepped start
// passes cand.End, or passes until when until is non-zero. Daily series are compared by
// wall clock instead and are rejected here.
func (r Recurrence) WalkOverlaps(anchor, cand Window, until time.Time) (bool, error) {
	switch r {
	case RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
	default:
		return false, fmt.Errorf("%w: %q cannot be walked", ErrInvalidPattern, r)
	}

	start, end := anchor.Start, anchor.End
	for !start.After(cand.End) {
		start, _ = r.Step(start, 1)
		end, _ = r.Step(end, 1)
		if !until.IsZero() && start.After(until) {
			return false, nil
		}
		if DateOverlap(start, end, cand.Start, cand.End) {
			return true, nil
		}
	}
	return false, nil
}

// Until returns the end of the last occurrence of a truncated series.
func (r Reservation) Until() (time.Time, bool) {
	if !r.IsSeries() || !r.Truncated {
		return time.Time{}, false
	}
	return r.EndTime, true
}

// FirstOccurrence returns the anchor occurrence of a series. Occurrences last at most a
// day, so its end is the first instant after the start with the stored end's time of
// day; the stored end date is not used.
func (r Reservation) FirstOccurrence() Window {
	start := r.StartTime
	end := TimeOfDayOf(r.EndTime).At(start)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return Window{Start: start, End: end}
}

// GenerateOccurrences lists the occurrences of series that overlap [windowStart, windowEnd).
func GenerateOccurrences(series Reservation, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	if !series.IsSeries() {
		return nil, ErrNotRecurring
	}
	if !windowEnd.After(windowStart) {
		return nil, errors.New("window_end must be after window_start")
	}

	until, bounded := series.Until()
	first := series.FirstOccurrence()
	start, end := first.Start, first.End

	out := make([]Occurrence, 0, 16)
	for start.Before(windowEnd) {
		if bounded && start.After(until) {
			break
		}
		if end.After(windowStart) {
			out = append(out, Occurrence{
				SeriesID:  series.ID,
				StartTime: start,
				EndTime:   end,
			})
		}

		var err error
		if start, err = series.Recurrence.Step(start, 1); err != nil {
			return nil, err
		}
		if end, err = series.Recurrence.Step(end, 1); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
