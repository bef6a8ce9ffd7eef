package grpc

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"parkshare/backend/internal/domain"
)

// fields reads typed values out of a request Struct. Times travel as RFC 3339 strings.
type fields map[string]*structpb.Value

func fieldsOf(req *structpb.Struct) fields {
	return fields(req.GetFields())
}

func (f fields) present(key string) bool {
	v, ok := f[key]
	if !ok || v == nil {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return v.GetKind() != nil && !isNull
}

func (f fields) str(key string) string {
	if !f.present(key) {
		return ""
	}
	return strings.TrimSpace(f[key].GetStringValue())
}

func (f fields) id(key string) (uuid.UUID, error) {
	id, err := uuid.Parse(f.str(key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID", key)
	}
	return id, nil
}

func (f fields) time(key string) (time.Time, bool, error) {
	if !f.present(key) {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, f.str(key))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s must be an RFC 3339 timestamp", key)
	}
	return t.UTC(), true, nil
}

func (f fields) requiredTime(key string) (time.Time, error) {
	t, ok, err := f.time(key)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	return t, nil
}

func (f fields) number(key string) (float64, bool, error) {
	if !f.present(key) {
		return 0, false, nil
	}
	n, ok := f[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false, fmt.Errorf("%s must be a number", key)
	}
	return n.NumberValue, true, nil
}

func (f fields) boolean(key string) (bool, bool, error) {
	if !f.present(key) {
		return false, false, nil
	}
	b, ok := f[key].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, false, fmt.Errorf("%s must be a boolean", key)
	}
	return b.BoolValue, true, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optionalID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func reservationValue(r domain.Reservation) map[string]any {
	exclusions := make([]any, 0, len(r.Exclusions))
	for _, id := range r.Exclusions {
		exclusions = append(exclusions, id.String())
	}
	return map[string]any{
		"id":          r.ID.String(),
		"resource_id": r.ResourceID.String(),
		"owner_id":    r.OwnerID,
		"start_time":  formatTime(r.StartTime),
		"end_time":    formatTime(r.EndTime),
		"price":       r.Price,
		"paid":        r.Paid,
		"recurrence":  string(r.Recurrence),
		"exclusions":  exclusions,
		"parent_id":   optionalID(r.ParentID),
		"child_id":    optionalID(r.ChildID),
		"truncated":   r.Truncated,
		"created_at":  formatTime(r.CreatedAt),
		"updated_at":  formatTime(r.UpdatedAt),
	}
}

func occurrenceValue(o domain.Occurrence) map[string]any {
	return map[string]any{
		"series_id":  o.SeriesID.String(),
		"start_time": formatTime(o.StartTime),
		"end_time":   formatTime(o.EndTime),
	}
}
