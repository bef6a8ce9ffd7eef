package domain

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SentinelYear marks the stored end of a recurring reservation as "recurs forever".
const SentinelYear = 9998

type Reservation struct {
	bun.BaseModel `bun:"table:reservations,alias:r"`

	ID         uuid.UUID   `bun:"id,pk,type:uuid"`
	ResourceID uuid.UUID   `bun:"resource_id,notnull,type:uuid"`
	OwnerID    string      `bun:"owner_id,notnull"`
	StartTime  time.Time   `bun:"start_time,notnull"`
	EndTime    time.Time   `bun:"end_time,notnull"`
	Price      float64     `bun:"price,notnull"`
	Paid       bool        `bun:"paid,notnull"`
	Recurrence Recurrence  `bun:"recurrence,notnull"`
	Exclusions []uuid.UUID `bun:"exclusions,array,type:uuid[],notnull"`
	ParentID   *uuid.UUID  `bun:"parent_id,type:uuid"`
	ChildID    *uuid.UUID  `bun:"child_id,type:uuid"`
	// Truncated is set once a split or a future cancel has given the series a real last
	// occurrence at EndTime.
	Truncated  bool        `bun:"truncated,notnull"`
	CreatedAt  time.Time   `bun:"created_at,notnull"`
	UpdatedAt  time.Time   `bun:"updated_at,notnull"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.Exclusions == nil {
			r.Exclusions = []uuid.UUID{}
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// IsSeries reports whether r is a series anchor.
func (r Reservation) IsSeries() bool {
	return r.Recurrence.IsRecurring()
}

// IsExclusion reports whether r overrides a single occurrence of another series.
func (r Reservation) IsExclusion() bool {
	return !r.Recurrence.IsRecurring() && r.ParentID != nil
}

func (r Reservation) Window() Window {
	return Window{Start: r.StartTime, End: r.EndTime}
}

// Clone returns a deep copy; the exclusion list and the relation pointers are not shared.
func (r Reservation) Clone() Reservation {
	out := r
	out.Exclusions = slices.Clone(r.Exclusions)
	if out.Exclusions == nil {
		out.Exclusions = []uuid.UUID{}
	}
	if r.ParentID != nil {
		p := *r.ParentID
		out.ParentID = &p
	}
	if r.ChildID != nil {
		c := *r.ChildID
		out.ChildID = &c
	}
	return out
}

// ActiveAt reports whether r can still collide with windows at or after now. A series
// that has not been truncated recurs forever whatever its stored end says.
func (r Reservation) ActiveAt(now time.Time) bool {
	if r.IsSeries() && !r.Truncated {
		return true
	}
	return !r.EndTime.Before(now)
}

// EffectiveEndFor moves a sentinel-year end into year; any other end is returned unchanged.
func (r Reservation) EffectiveEndFor(year int) time.Time {
	if r.EndTime.Year() != SentinelYear {
		return r.EndTime
	}
	return withYear(r.EndTime, year)
}

// SentinelEnd moves end to the sentinel year, keeping month and time of day. The day is
// clamped, so Feb 29 is stored as Feb 28.
func SentinelEnd(end time.Time) time.Time {
	return withYear(end, SentinelYear)
}

func withYear(t time.Time, year int) time.Time {
	d := t.Day()
	if last := daysIn(year, t.Month()); d > last {
		d = last
	}
	return time.Date(year, t.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Window is a concrete [Start, End] time span.
type Window struct {
	Start time.Time
	End   time.Time
}

// Occurrence is one concrete window implied by a series.
type Occurrence struct {
	SeriesID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}
