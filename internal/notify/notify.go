// Package notify delivers reservation events to the owner and provider inboxes.
// Delivery is best effort: callers log failures and never roll back on them.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindCreated   Kind = "reservation.created"
	KindCancelled Kind = "reservation.cancelled"
	KindUpdated   Kind = "reservation.updated"
)

type Audience string

const (
	AudienceOwner    Audience = "owner"
	AudienceProvider Audience = "provider"
)

type Event struct {
	ID            uuid.UUID `json:"id"`
	Kind          Kind      `json:"kind"`
	Audience      Audience  `json:"audience"`
	ReservationID uuid.UUID `json:"reservation_id"`
	ResourceID    uuid.UUID `json:"resource_id"`
	OwnerID       string    `json:"owner_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Price         float64   `json:"price"`
	Recurrence    string    `json:"recurrence"`
	CancelType    string    `json:"cancel_type,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Fanout delivers each event to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
