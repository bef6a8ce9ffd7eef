package reservations

import (
	"time"

	"github.com/samber/mo"

	"parkshare/backend/internal/domain"
)

// Patch is a partial update of a reservation. Absent fields are left unchanged.
type Patch struct {
	StartTime mo.Option[time.Time]
	EndTime   mo.Option[time.Time]
	Price     mo.Option[float64]
	Paid      mo.Option[bool]
}

func (p Patch) IsEmpty() bool {
	return p.StartTime.IsAbsent() && p.EndTime.IsAbsent() && p.Price.IsAbsent() && p.Paid.IsAbsent()
}

// Window returns the patched window when both ends are present.
func (p Patch) Window() (domain.Window, bool) {
	start, okStart := p.StartTime.Get()
	end, okEnd := p.EndTime.Get()
	if !okStart || !okEnd {
		return domain.Window{}, false
	}
	return domain.Window{Start: start.UTC(), End: end.UTC()}, true
}

func (p Patch) touchesWindow() bool {
	return p.StartTime.IsPresent() || p.EndTime.IsPresent()
}

func (p Patch) applyTo(r *domain.Reservation) {
	if v, ok := p.StartTime.Get(); ok {
		r.StartTime = v.UTC()
	}
	if v, ok := p.EndTime.Get(); ok {
		r.EndTime = v.UTC()
	}
	if v, ok := p.Price.Get(); ok {
		r.Price = v
	}
	if v, ok := p.Paid.Get(); ok {
		r.Paid = v
	}
}
