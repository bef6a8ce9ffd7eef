// Package memory is an in-process reservation store. It serves the memory store driver
// and the service tests; writes made in a transaction are staged and only become visible
// when the transaction function returns nil.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"parkshare/backend/internal/clock"
	"parkshare/backend/internal/domain"
	"parkshare/backend/internal/store"
)

type Store struct {
	clock clock.Clock

	mu           sync.RWMutex
	reservations map[uuid.UUID]domain.Reservation
	owners       map[string][]uuid.UUID

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

var _ store.ReservationRepository = (*Store)(nil)

func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{
		clock:        clk,
		reservations: make(map[uuid.UUID]domain.Reservation),
		owners:       make(map[string][]uuid.UUID),
		locks:        make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) InResourceTransaction(ctx context.Context, resourceID uuid.UUID, fn func(ctx context.Context, tx store.ReservationTx) error) error {
	lock := s.resourceLock(resourceID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{
		s:       s,
		puts:    make(map[uuid.UUID]domain.Reservation),
		deletes: make(map[uuid.UUID]struct{}),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return domain.Reservation{}, store.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.owners[ownerID]
	out := make([]domain.Reservation, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.reservations[id]; ok {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) resourceLock(resourceID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[resourceID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[resourceID] = l
	}
	return l
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range t.deletes {
		delete(s.reservations, id)
	}
	for id, r := range t.puts {
		s.reservations[id] = r
	}
	for _, op := range t.ownerOps {
		ids := s.owners[op.ownerID]
		idx := slices.Index(ids, op.reservationID)
		switch {
		case op.attach && idx < 0:
			s.owners[op.ownerID] = append(ids, op.reservationID)
		case !op.attach && idx >= 0:
			s.owners[op.ownerID] = slices.Delete(ids, idx, idx+1)
		}
	}
}

type ownerOp struct {
	attach        bool
	ownerID       string
	reservationID uuid.UUID
}

type tx struct {
	s        *Store
	puts     map[uuid.UUID]domain.Reservation
	deletes  map[uuid.UUID]struct{}
	ownerOps []ownerOp
}

func (t *tx) lookup(id uuid.UUID) (domain.Reservation, bool) {
	if _, gone := t.deletes[id]; gone {
		return domain.Reservation{}, false
	}
	if r, ok := t.puts[id]; ok {
		return r, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	r, ok := t.s.reservations[id]
	return r, ok
}

func (t *tx) ListActive(ctx context.Context, resourceID uuid.UUID, now time.Time) ([]domain.Reservation, error) {
	t.s.mu.RLock()
	seen := make(map[uuid.UUID]domain.Reservation, len(t.s.reservations))
	for id, r := range t.s.reservations {
		if r.ResourceID == resourceID {
			seen[id] = r
		}
	}
	t.s.mu.RUnlock()

	for id, r := range t.puts {
		if r.ResourceID == resourceID {
			seen[id] = r
		}
	}

	out := make([]domain.Reservation, 0, len(seen))
	for id, r := range seen {
		if _, gone := t.deletes[id]; gone {
			continue
		}
		if !r.ActiveAt(now) {
			continue
		}
		out = append(out, r.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].EndTime.Before(out[j].EndTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t *tx) GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	r, ok := t.lookup(id)
	if !ok {
		return domain.Reservation{}, store.ErrNotFound
	}
	return r.Clone(), nil
}

func (t *tx) InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if r.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Reservation{}, err
		}
		r.ID = id
	}
	if _, exists := t.lookup(r.ID); exists {
		return domain.Reservation{}, store.ErrConflict
	}

	now := t.s.clock.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	r = r.Clone()
	delete(t.deletes, r.ID)
	t.puts[r.ID] = r
	return r.Clone(), nil
}

func (t *tx) UpdateReservation(ctx context.Context, r domain.Reservation) error {
	existing, ok := t.lookup(r.ID)
	if !ok {
		return store.ErrNotFound
	}
	r = r.Clone()
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = t.s.clock.Now()
	t.puts[r.ID] = r
	return nil
}

func (t *tx) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.lookup(id); !ok {
		return store.ErrNotFound
	}
	delete(t.puts, id)
	t.deletes[id] = struct{}{}
	return nil
}

func (t *tx) AttachToOwner(ctx context.Context, ownerID string, reservationID uuid.UUID) error {
	t.ownerOps = append(t.ownerOps, ownerOp{attach: true, ownerID: ownerID, reservationID: reservationID})
	return nil
}

func (t *tx) DetachFromOwner(ctx context.Context, ownerID string, reservationID uuid.UUID) error {
	t.ownerOps = append(t.ownerOps, ownerOp{attach: false, ownerID: ownerID, reservationID: reservationID})
	return nil
}
