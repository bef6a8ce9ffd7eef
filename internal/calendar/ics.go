// Package calendar renders reservations as iCalendar documents.
package calendar

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"parkshare/backend/internal/domain"
)

const ProductID = "-//parkshare//Reservations//EN"

// Export renders r as a VCALENDAR with one VEVENT. A series carries an RRULE, bounded
// by UNTIL when it has been truncated. Exclusion records are emitted as their own
// VEVENTs related to the series.
func Export(r domain.Reservation, exclusions []domain.Reservation, stamp time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	ev, err := event(r, stamp)
	if err != nil {
		return nil, err
	}
	cal.Children = append(cal.Children, ev.Component)

	for _, ex := range exclusions {
		exEv, err := event(ex, stamp)
		if err != nil {
			return nil, err
		}
		exEv.Props.SetText(ical.PropRelatedTo, r.ID.String())
		cal.Children = append(cal.Children, exEv.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func event(r domain.Reservation, stamp time.Time) (*ical.Event, error) {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, r.ID.String())
	ev.Props.SetText(ical.PropSummary, fmt.Sprintf("Reservation %s", r.ResourceID))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	if !r.IsSeries() {
		if r.Recurrence != domain.RecurrenceNone && r.Recurrence != "" {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPattern, r.Recurrence)
		}
		ev.Props.SetDateTime(ical.PropDateTimeStart, r.StartTime.UTC())
		ev.Props.SetDateTime(ical.PropDateTimeEnd, r.EndTime.UTC())
		return ev, nil
	}

	first := r.FirstOccurrence()
	ev.Props.SetDateTime(ical.PropDateTimeStart, first.Start.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, first.End.UTC())

	rule, err := recurrenceRule(r)
	if err != nil {
		return nil, err
	}
	ev.Props.SetRecurrenceRule(rule)
	return ev, nil
}

func recurrenceRule(r domain.Reservation) (*rrule.ROption, error) {
	opt := &rrule.ROption{Interval: 1}
	switch r.Recurrence {
	case domain.RecurrenceDaily:
		opt.Freq = rrule.DAILY
	case domain.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
	case domain.RecurrenceBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case domain.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPattern, r.Recurrence)
	}
	if until, ok := r.Until(); ok {
		opt.Until = until.UTC()
	}
	return opt, nil
}
