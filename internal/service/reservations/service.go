package reservations

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"parkshare/backend/internal/calendar"
	"parkshare/backend/internal/clock"
	"parkshare/backend/internal/domain"
	"parkshare/backend/internal/notify"
	"parkshare/backend/internal/store"
)

var ErrForbidden = errors.New("forbidden")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Actor is the caller of a mutating operation. Owners may mutate their own
// reservations; admins may mutate any.
type Actor struct {
	ID    string
	Admin bool
}

func (a Actor) canMutate(r domain.Reservation) bool {
	return a.Admin || (a.ID != "" && a.ID == r.OwnerID)
}

type Service struct {
	repo          store.ReservationRepository
	clock         clock.Clock
	notifier      notify.Notifier
	notifyTimeout time.Duration
	log           *slog.Logger
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(repo store.ReservationRepository, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		clock:         clock.Real{},
		notifier:      notify.Nop{},
		notifyTimeout: 5 * time.Second,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "reservations"))
	return s
}

type CreateInput struct {
	ResourceID uuid.UUID
	OwnerID    string
	StartTime  time.Time
	EndTime    time.Time
	Price      float64
	Recurrence string
}

// Create books the window on the resource if it does not collide with any active
// reservation there. A recurring reservation is stored with the sentinel year in its end.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Reservation, error) {
	if in.OwnerID == "" {
		return domain.Reservation{}, validationError("owner_id is required")
	}
	if in.ResourceID == uuid.Nil {
		return domain.Reservation{}, validationError("resource_id is required")
	}
	recurrence, err := domain.ParseRecurrence(in.Recurrence)
	if err != nil {
		return domain.Reservation{}, err
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if !end.After(start) {
		return domain.Reservation{}, validationError("end_time must be after start_time")
	}
	if recurrence.IsRecurring() && end.Sub(start) > 24*time.Hour {
		return domain.Reservation{}, validationError("recurring occurrence must not exceed 24 hours")
	}
	if in.Price < 0 {
		return domain.Reservation{}, validationError("price must not be negative")
	}

	res := domain.Reservation{
		ResourceID: in.ResourceID,
		OwnerID:    in.OwnerID,
		StartTime:  start,
		EndTime:    end,
		Price:      in.Price,
		Recurrence: recurrence,
		Exclusions: []uuid.UUID{},
	}
	if recurrence.IsRecurring() {
		res.EndTime = domain.SentinelEnd(end)
	}

	var out domain.Reservation
	err = s.repo.InResourceTransaction(ctx, in.ResourceID, func(ctx context.Context, tx store.ReservationTx) error {
		cand := domain.Window{Start: start, End: end}
		if err := CheckOverlap(ctx, tx, in.ResourceID, cand, s.clock.Now()); err != nil {
			return err
		}
		created, err := tx.InsertReservation(ctx, res)
		if err != nil {
			return err
		}
		out = created
		return tx.AttachToOwner(ctx, created.OwnerID, created.ID)
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.publish(ctx, notify.KindCreated, out, "")
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	if id == uuid.Nil {
		return domain.Reservation{}, validationError("reservation_id is required")
	}
	return s.repo.Get(ctx, id)
}

type CancelType string

const (
	CancelAll    CancelType = ""
	CancelSingle CancelType = "single"
	CancelFuture CancelType = "future"
)

type CancelInput struct {
	ID    uuid.UUID
	Type  CancelType
	Actor Actor
	// StartTime and EndTime identify the target occurrence of a single or future cancel.
	StartTime time.Time
	EndTime   time.Time
}

// Cancel removes a reservation outright, removes one occurrence of a series, or ends a
// series before the target occurrence, depending on in.Type.
func (s *Service) Cancel(ctx context.Context, in CancelInput) error {
	if in.ID == uuid.Nil {
		return validationError("reservation_id is required")
	}

	var target domain.Window
	switch in.Type {
	case CancelAll:
	case CancelSingle, CancelFuture:
		target = domain.Window{Start: in.StartTime.UTC(), End: in.EndTime.UTC()}
		if !target.End.After(target.Start) {
			return validationError("end_time must be after start_time")
		}
	default:
		return validationError("type must be empty, single or future")
	}

	current, err := s.repo.Get(ctx, in.ID)
	if err != nil {
		return err
	}
	if !in.Actor.canMutate(current) {
		return ErrForbidden
	}

	var cancelled domain.Reservation
	err = s.repo.InResourceTransaction(ctx, current.ResourceID, func(ctx context.Context, tx store.ReservationTx) error {
		r, err := tx.GetReservation(ctx, in.ID)
		if err != nil {
			return err
		}
		cancelled = r

		switch in.Type {
		case CancelSingle:
			exclusionID, err := CreateExclusion(ctx, tx, r.ID, Patch{
				StartTime: mo.Some(target.Start),
				EndTime:   mo.Some(target.End),
			})
			if err != nil {
				return err
			}
			if _, err := Split(ctx, tx, r.ID, target); err != nil {
				return err
			}
			return DeleteExclusion(ctx, tx, r.ID, exclusionID)

		case CancelFuture:
			continuationID, err := Split(ctx, tx, r.ID, target)
			if err != nil {
				return err
			}
			if err := tx.DeleteReservation(ctx, continuationID); err != nil {
				return err
			}
			series, err := tx.GetReservation(ctx, r.ID)
			if err != nil {
				return err
			}
			series.ChildID = nil
			return tx.UpdateReservation(ctx, series)

		default:
			return cancelAll(ctx, tx, r)
		}
	})
	if err != nil {
		return err
	}

	s.publish(ctx, notify.KindCancelled, cancelled, string(in.Type))
	return nil
}

// cancelAll deletes r together with its exclusion records and every continuation
// split from it, then unlinks it from its parent and its owner.
func cancelAll(ctx context.Context, tx store.ReservationTx, r domain.Reservation) error {
	seen := map[uuid.UUID]bool{}
	cur := r
	for {
		seen[cur.ID] = true
		for _, exID := range cur.Exclusions {
			if err := tx.DeleteReservation(ctx, exID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		if err := tx.DeleteReservation(ctx, cur.ID); err != nil {
			return err
		}

		if cur.ChildID == nil || seen[*cur.ChildID] {
			break
		}
		next, err := tx.GetReservation(ctx, *cur.ChildID)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return err
		}
		cur = next
	}

	if r.ParentID != nil {
		parent, err := tx.GetReservation(ctx, *r.ParentID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			changed := false
			if parent.ChildID != nil && *parent.ChildID == r.ID {
				parent.ChildID = nil
				changed = true
			}
			if idx := slices.Index(parent.Exclusions, r.ID); idx >= 0 {
				parent.Exclusions = slices.Delete(parent.Exclusions, idx, idx+1)
				changed = true
			}
			if changed {
				if err := tx.UpdateReservation(ctx, parent); err != nil {
					return err
				}
			}
		}
	}

	return tx.DetachFromOwner(ctx, r.OwnerID, r.ID)
}

// UpdateResult names the records an update produced. For a recurring reservation the
// patched occurrence lives on as ExclusionID and the series resumes as ContinuationID.
type UpdateResult struct {
	ID             uuid.UUID
	ExclusionID    uuid.UUID
	ContinuationID uuid.UUID
}

// Update patches a plain reservation in place. For a series it records the patched
// occurrence as a kept exclusion and splits the series around it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, actor Actor, patch Patch) (UpdateResult, error) {
	if id == uuid.Nil {
		return UpdateResult{}, validationError("reservation_id is required")
	}
	if patch.IsEmpty() {
		return UpdateResult{}, validationError("nothing to update")
	}
	if v, ok := patch.Price.Get(); ok && v < 0 {
		return UpdateResult{}, validationError("price must not be negative")
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}
	if !actor.canMutate(current) {
		return UpdateResult{}, ErrForbidden
	}

	result := UpdateResult{ID: id}
	var updated domain.Reservation
	err = s.repo.InResourceTransaction(ctx, current.ResourceID, func(ctx context.Context, tx store.ReservationTx) error {
		r, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}

		if r.Recurrence != domain.RecurrenceNone && r.Recurrence != "" {
			window, ok := patch.Window()
			if !ok {
				return validationError("start_time and end_time are required to update a recurring reservation")
			}
			exclusionID, err := CreateExclusion(ctx, tx, r.ID, patch)
			if err != nil {
				return err
			}
			continuationID, err := Split(ctx, tx, r.ID, window)
			if err != nil {
				return err
			}
			result.ExclusionID = exclusionID
			result.ContinuationID = continuationID
			updated = r
			return nil
		}

		patch.applyTo(&r)
		if !r.EndTime.After(r.StartTime) {
			return validationError("end_time must be after start_time")
		}
		if patch.touchesWindow() {
			cand := domain.Window{Start: r.StartTime, End: r.EndTime}
			if err := CheckOverlap(ctx, tx, r.ResourceID, cand, s.clock.Now(), r.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}

	s.publish(ctx, notify.KindUpdated, updated, "")
	return result, nil
}

// ListCompleted returns the owner's reservations that are no longer active, in the
// order they were booked. Recurring reservations complete only once truncated.
func (s *Service) ListCompleted(ctx context.Context, ownerID string) ([]domain.Reservation, error) {
	if ownerID == "" {
		return nil, validationError("owner_id is required")
	}

	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]domain.Reservation, 0, len(rows))
	for _, r := range rows {
		if !r.ActiveAt(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListOccurrences expands a series over [windowStart, windowEnd). Occurrences on the
// date of one of the series' exclusions are replaced by the exclusion's own window.
func (s *Service) ListOccurrences(ctx context.Context, id uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Occurrence, error) {
	if id == uuid.Nil {
		return nil, validationError("reservation_id is required")
	}
	start := windowStart.UTC()
	end := windowEnd.UTC()
	if !end.After(start) {
		return nil, validationError("window_end must be after window_start")
	}

	series, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSeries(series); err != nil {
		return nil, err
	}

	occs, err := domain.GenerateOccurrences(series, start, end)
	if err != nil {
		return nil, err
	}
	exclusions, err := s.exclusionsOf(ctx, series)
	if err != nil {
		return nil, err
	}
	if len(exclusions) == 0 {
		return occs, nil
	}

	out := make([]domain.Occurrence, 0, len(occs)+len(exclusions))
	for _, o := range occs {
		replaced := slices.ContainsFunc(exclusions, func(ex domain.Reservation) bool {
			return domain.SameDate(ex.StartTime, o.StartTime)
		})
		if !replaced {
			out = append(out, o)
		}
	}
	for _, ex := range exclusions {
		if ex.StartTime.Before(end) && ex.EndTime.After(start) {
			out = append(out, domain.Occurrence{SeriesID: series.ID, StartTime: ex.StartTime, EndTime: ex.EndTime})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// ExportCalendar renders the reservation, and any exclusion records of a series, as an
// iCalendar document.
func (s *Service) ExportCalendar(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if id == uuid.Nil {
		return nil, validationError("reservation_id is required")
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exclusions, err := s.exclusionsOf(ctx, r)
	if err != nil {
		return nil, err
	}
	return calendar.Export(r, exclusions, s.clock.Now())
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) exclusionsOf(ctx context.Context, r domain.Reservation) ([]domain.Reservation, error) {
	out := make([]domain.Reservation, 0, len(r.Exclusions))
	for _, id := range r.Exclusions {
		ex, err := s.repo.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

// publish notifies the owner and the provider of a committed mutation. Failures are
// logged and never surface to the caller.
func (s *Service) publish(ctx context.Context, kind notify.Kind, r domain.Reservation, cancelType string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	now := s.clock.Now()
	for _, audience := range []notify.Audience{notify.AudienceOwner, notify.AudienceProvider} {
		eventID, err := uuid.NewV7()
		if err != nil {
			eventID = uuid.New()
		}
		ev := notify.Event{
			ID:            eventID,
			Kind:          kind,
			Audience:      audience,
			ReservationID: r.ID,
			ResourceID:    r.ResourceID,
			OwnerID:       r.OwnerID,
			StartTime:     r.StartTime,
			EndTime:       r.EndTime,
			Price:         r.Price,
			Recurrence:    string(r.Recurrence),
			CancelType:    cancelType,
			OccurredAt:    now,
		}
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.log.WarnContext(ctx, "notification failed",
				slog.String("kind", string(kind)),
				slog.String("audience", string(audience)),
				slog.String("reservation_id", r.ID.String()),
				slog.Any("err", err),
			)
		}
	}
}
