package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"parkshare/backend/internal/domain"
	"parkshare/backend/internal/service/reservations"
	"parkshare/backend/internal/store"
)

type ReservationsServer struct {
	svc reservationsService
	log *slog.Logger
}

type reservationsService interface {
	Create(ctx context.Context, in reservations.CreateInput) (domain.Reservation, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	Cancel(ctx context.Context, in reservations.CancelInput) error
	Update(ctx context.Context, id uuid.UUID, actor reservations.Actor, patch reservations.Patch) (reservations.UpdateResult, error)
	ListCompleted(ctx context.Context, ownerID string) ([]domain.Reservation, error)
	ListOccurrences(ctx context.Context, id uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Occurrence, error)
	ExportCalendar(ctx context.Context, id uuid.UUID) ([]byte, error)
}

var _ ReservationsServiceServer = (*ReservationsServer)(nil)

func NewReservationsServer(svc reservationsService, log *slog.Logger) *ReservationsServer {
	if log == nil {
		log = slog.Default()
	}
	return &ReservationsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.reservations")),
	}
}

// actorFromContext reads the caller from the x-user-id and x-user-role metadata keys.
func actorFromContext(ctx context.Context) reservations.Actor {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return reservations.Actor{}
	}
	var actor reservations.Actor
	if values := md.Get("x-user-id"); len(values) > 0 {
		actor.ID = strings.TrimSpace(values[0])
	}
	if values := md.Get("x-user-role"); len(values) > 0 {
		actor.Admin = strings.EqualFold(strings.TrimSpace(values[0]), "admin")
	}
	return actor
}

func (s *ReservationsServer) CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateReservation"))
	actor := actorFromContext(ctx)
	f := fieldsOf(req)

	resourceID, err := f.id("resource_id")
	if err != nil {
		return nil, invalid(log, err, slog.String("user_id", actor.ID))
	}
	start, err := f.requiredTime("start_time")
	if err != nil {
		return nil, invalid(log, err, slog.String("user_id", actor.ID))
	}
	end, err := f.requiredTime("end_time")
	if err != nil {
		return nil, invalid(log, err, slog.String("user_id", actor.ID))
	}
	price, _, err := f.number("price")
	if err != nil {
		return nil, invalid(log, err, slog.String("user_id", actor.ID))
	}

	r, err := s.svc.Create(ctx, reservations.CreateInput{
		ResourceID: resourceID,
		OwnerID:    actor.ID,
		StartTime:  start,
		EndTime:    end,
		Price:      price,
		Recurrence: f.str("recurrence"),
	})
	if err != nil {
		return nil, s.fail(log, "reservation create", err,
			slog.String("user_id", actor.ID),
			slog.String("resource_id", resourceID.String()),
			slog.Time("start_time", start),
			slog.Time("end_time", end),
		)
	}

	log.Info(
		"reservation created",
		slog.String("reservation_id", r.ID.String()),
		slog.String("resource_id", r.ResourceID.String()),
		slog.String("user_id", r.OwnerID),
		slog.String("recurrence", string(r.Recurrence)),
	)
	return respond(log, map[string]any{"reservation": reservationValue(r)})
}

func (s *ReservationsServer) GetReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetReservation"))

	id, err := fieldsOf(req).id("reservation_id")
	if err != nil {
		return nil, invalid(log, err)
	}

	r, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, s.fail(log, "reservation get", err, slog.String("reservation_id", id.String()))
	}
	return respond(log, map[string]any{"reservation": reservationValue(r)})
}

func (s *ReservationsServer) CancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CancelReservation"))
	actor := actorFromContext(ctx)
	f := fieldsOf(req)

	id, err := f.id("reservation_id")
	if err != nil {
		return nil, invalid(log, err, slog.String("user_id", actor.ID))
	}
	in := reservations.CancelInput{
		ID:    id,
		Type:  reservations.CancelType(strings.ToLower(f.str("type"))),
		Actor: actor,
	}
	if in.Type != reservations.CancelAll {
		if in.StartTime, err = f.requiredTime("start_time"); err != nil {
			return nil, invalid(log, err, slog.String("user_id", actor.ID))
		}
		if in.EndTime, err = f.requiredTime("end_time"); err != nil {
			return nil, invalid(log, err, slog.String("user_id", actor.ID))
		}
	}

	attrs := []any{
		slog.String("reservation_id", id.String()),
		slog.String("user_id", actor.ID),
		slog.String("type", string(in.Type)),
	}
	if err := s.svc.Cancel(ctx, in); err != nil {
		return nil, s.fail(log, "reservation cancel", err, attrs...)
	}

	log.Info("reservation cancelled", attrs...)
	return respond(log, map[string]any{"reservation_id": id.String()})
}

func (s *ReservationsServer) UpdateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "UpdateReservation"))
	actor := actorFromContext(ctx)
	f := fieldsOf(req)

	id, err := f.id("reservation_id")
	if err != nil {
		return nil, invalid(log, err, slog.String("user_id", actor.ID))
	}
	patch, err := patchFrom(f)
	if err != nil {
		return nil, invalid(log, err, slog.String("user_id", actor.ID))
	}

	res, err := s.svc.Update(ctx, id, actor, patch)
	if err != nil {
		return nil, s.fail(log, "reservation update", err,
			slog.String("reservation_id", id.String()),
			slog.String("user_id", actor.ID),
		)
	}

	out := map[string]any{"reservation_id": res.ID.String()}
	if res.ExclusionID != uuid.Nil {
		out["exclusion_id"] = res.ExclusionID.String()
	}
	if res.ContinuationID != uuid.Nil {
		out["continuation_id"] = res.ContinuationID.String()
	}

	log.Info("reservation updated", slog.String("reservation_id", id.String()), slog.String("user_id", actor.ID))
	return respond(log, out)
}

func patchFrom(f fields) (reservations.Patch, error) {
	var p reservations.Patch
	if t, ok, err := f.time("start_time"); err != nil {
		return p, err
	} else if ok {
		p.StartTime = mo.Some(t)
	}
	if t, ok, err := f.time("end_time"); err != nil {
		return p, err
	} else if ok {
		p.EndTime = mo.Some(t)
	}
	if n, ok, err := f.number("price"); err != nil {
		return p, err
	} else if ok {
		p.Price = mo.Some(n)
	}
	if b, ok, err := f.boolean("paid"); err != nil {
		return p, err
	} else if ok {
		p.Paid = mo.Some(b)
	}
	return p, nil
}

func (s *ReservationsServer) ListCompletedReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListCompletedReservations"))
	actor := actorFromContext(ctx)

	ownerID := fieldsOf(req).str("owner_id")
	if ownerID == "" {
		ownerID = actor.ID
	}
	if ownerID != actor.ID && !actor.Admin {
		log.Warn("permission denied", slog.String("user_id", actor.ID), slog.String("owner_id", ownerID))
		return nil, status.Error(codes.PermissionDenied, "not allowed to list another owner's reservations")
	}

	rows, err := s.svc.ListCompleted(ctx, ownerID)
	if err != nil {
		return nil, s.fail(log, "completed reservations list", err, slog.String("owner_id", ownerID))
	}

	out := make([]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, reservationValue(r))
	}

	log.Debug("completed reservations listed", slog.String("owner_id", ownerID), slog.Int("count", len(out)))
	return respond(log, map[string]any{"reservations": out})
}

func (s *ReservationsServer) ListOccurrences(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListOccurrences"))
	f := fieldsOf(req)

	id, err := f.id("reservation_id")
	if err != nil {
		return nil, invalid(log, err)
	}
	windowStart, err := f.requiredTime("window_start")
	if err != nil {
		return nil, invalid(log, err, slog.String("reservation_id", id.String()))
	}
	windowEnd, err := f.requiredTime("window_end")
	if err != nil {
		return nil, invalid(log, err, slog.String("reservation_id", id.String()))
	}

	occs, err := s.svc.ListOccurrences(ctx, id, windowStart, windowEnd)
	if err != nil {
		return nil, s.fail(log, "occurrences list", err, slog.String("reservation_id", id.String()))
	}

	out := make([]any, 0, len(occs))
	for _, o := range occs {
		out = append(out, occurrenceValue(o))
	}

	log.Debug(
		"occurrences listed",
		slog.String("reservation_id", id.String()),
		slog.Int("count", len(out)),
		slog.Time("window_start", windowStart),
		slog.Time("window_end", windowEnd),
	)
	return respond(log, map[string]any{"occurrences": out})
}

func (s *ReservationsServer) ExportReservationCalendar(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ExportReservationCalendar"))

	id, err := fieldsOf(req).id("reservation_id")
	if err != nil {
		return nil, invalid(log, err)
	}

	b, err := s.svc.ExportCalendar(ctx, id)
	if err != nil {
		return nil, s.fail(log, "calendar export", err, slog.String("reservation_id", id.String()))
	}
	return respond(log, map[string]any{
		"content_type": "text/calendar",
		"ics":          string(b),
	})
}

func invalid(log *slog.Logger, err error, attrs ...any) error {
	log.Warn("invalid request", append([]any{slog.Any("err", err)}, attrs...)...)
	return status.Error(codes.InvalidArgument, err.Error())
}

func respond(log *slog.Logger, v map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(v)
	if err != nil {
		log.Error("response encode failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// fail maps a service error onto a gRPC status and logs it at the level its class warrants.
func (s *ReservationsServer) fail(log *slog.Logger, action string, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	var vErr *reservations.ValidationError
	switch {
	case errors.Is(err, store.ErrConflict):
		log.Info(action+" conflict", attrs...)
		return status.Error(codes.FailedPrecondition, "Invalid time slot")
	case errors.Is(err, store.ErrNotFound):
		log.Info("reservation not found", attrs...)
		return status.Error(codes.NotFound, "reservation not found")
	case errors.Is(err, domain.ErrAlreadySplit), errors.Is(err, domain.ErrNotRecurring):
		log.Info(action+" rejected", args...)
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidPattern), errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, reservations.ErrForbidden):
		log.Warn("permission denied", attrs...)
		return status.Error(codes.PermissionDenied, "not allowed to modify this reservation")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(action+" timed out", args...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	default:
		log.Error(action+" failed", args...)
		return status.Error(codes.Internal, "internal error")
	}
}
