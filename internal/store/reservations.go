package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"parkshare/backend/internal/domain"
)

// ReservationTx is the set of reads and writes available inside a resource transaction.
// Every write made through it commits or rolls back together.
type ReservationTx interface {
	// ListActive returns every reservation on the resource whose stored end is not
	// before now, ordered by end time.
	ListActive(ctx context.Context, resourceID uuid.UUID, now time.Time) ([]domain.Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error)
	// UpdateReservation replaces the stored document with r.
	UpdateReservation(ctx context.Context, r domain.Reservation) error
	DeleteReservation(ctx context.Context, id uuid.UUID) error

	AttachToOwner(ctx context.Context, ownerID string, reservationID uuid.UUID) error
	DetachFromOwner(ctx context.Context, ownerID string, reservationID uuid.UUID) error
}

type ReservationRepository interface {
	// InResourceTransaction runs fn while holding the single-writer lock of resourceID.
	InResourceTransaction(ctx context.Context, resourceID uuid.UUID, fn func(ctx context.Context, tx ReservationTx) error) error

	Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	// ListByOwner returns the reservations on the owner's list in the order they were attached.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Reservation, error)
	Ping(ctx context.Context) error
}
