package domain

import "time"

// DateOverlap reports whether the candidate window overlaps an existing one. Only a
// candidate that is strictly earlier, or strictly later, on both endpoints is clear.
// Containment is not special-cased.
func DateOverlap(existStart, existEnd, candStart, candEnd time.Time) bool {
	if (existStart.After(candStart) && existEnd.After(candEnd)) ||
		(existStart.Before(candStart) && existEnd.Before(candEnd)) {
		return false
	}
	return true
}

// TimeOverlap compares wall-clock windows, ignoring dates.
// Keep the formula as written: callers depend on its exact edge behaviour.
func TimeOverlap(existStart, existEnd, candStart, candEnd TimeOfDay) bool {
	return !(candStart > existStart && candEnd > existEnd) ||
		!(candStart < existStart && candEnd < existEnd)
}

// TimeOfDay is the wall-clock offset from midnight.
type TimeOfDay time.Duration

func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// At places the time of day on the calendar date of day.
func (tod TimeOfDay) At(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, day.Location()).Add(time.Duration(tod))
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
