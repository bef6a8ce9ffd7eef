package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"parkshare/backend/internal/domain"
	"parkshare/backend/internal/store"
)

type ReservationRepo struct {
	db *bun.DB
}

var _ store.ReservationRepository = (*ReservationRepo)(nil)

func NewReservationRepo(db *bun.DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

type ownerReservation struct {
	bun.BaseModel `bun:"table:owner_reservations,alias:o"`

	OwnerID       string    `bun:"owner_id,pk"`
	ReservationID uuid.UUID `bun:"reservation_id,pk,type:uuid"`
	AddedAt       time.Time `bun:"added_at,notnull"`
}

type reservationTx struct {
	tx bun.Tx
}

func (r *ReservationRepo) InResourceTransaction(ctx context.Context, resourceID uuid.UUID, fn func(ctx context.Context, tx store.ReservationTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockResource(ctx, tx, resourceID); err != nil {
			return err
		}
		return fn(ctx, reservationTx{tx: tx})
	})
}

func lockResource(ctx context.Context, tx bun.Tx, resourceID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", resourceID.String()).Exec(ctx)
	return err
}

func (r *ReservationRepo) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	return getReservation(ctx, r.db, id)
}

func (r *ReservationRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := r.db.NewSelect().
		Model(&rows).
		Join("JOIN owner_reservations AS o ON o.reservation_id = r.id").
		Where("o.owner_id = ?", ownerID).
		OrderExpr("o.added_at ASC, r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReservationRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var recurringPatterns = []domain.Recurrence{
	domain.RecurrenceDaily,
	domain.RecurrenceWeekly,
	domain.RecurrenceBiweekly,
	domain.RecurrenceMonthly,
}

func (t reservationTx) ListActive(ctx context.Context, resourceID uuid.UUID, now time.Time) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := t.tx.NewSelect().
		Model(&rows).
		Where("r.resource_id = ?", resourceID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("r.end_time >= ?", now).
				WhereOr("r.recurrence IN (?) AND NOT r.truncated", bun.In(recurringPatterns))
		}).
		OrderExpr("r.end_time ASC, r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t reservationTx) GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	return getReservation(ctx, t.tx, id)
}

func (t reservationTx) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	m := res.Clone()
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Reservation{}, store.ErrConflict
		}
		return domain.Reservation{}, err
	}
	return m, nil
}

func (t reservationTx) UpdateReservation(ctx context.Context, res domain.Reservation) error {
	m := res.Clone()
	result, err := t.tx.NewUpdate().
		Model(&m).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (t reservationTx) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	result, err := t.tx.NewDelete().
		Model((*domain.Reservation)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (t reservationTx) AttachToOwner(ctx context.Context, ownerID string, reservationID uuid.UUID) error {
	m := ownerReservation{
		OwnerID:       ownerID,
		ReservationID: reservationID,
		AddedAt:       time.Now().UTC(),
	}
	_, err := t.tx.NewInsert().
		Model(&m).
		On("CONFLICT (owner_id, reservation_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (t reservationTx) DetachFromOwner(ctx context.Context, ownerID string, reservationID uuid.UUID) error {
	_, err := t.tx.NewDelete().
		Model((*ownerReservation)(nil)).
		Where("owner_id = ?", ownerID).
		Where("reservation_id = ?", reservationID).
		Exec(ctx)
	return err
}

func getReservation(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Reservation, error) {
	var m domain.Reservation
	err := db.NewSelect().
		Model(&m).
		Where("r.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	return m, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
