package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events to a structured logger. It is the default sink when no
// broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With(slog.String("component", "notify"))}
}

func (n *LogNotifier) Notify(ctx context.Context, ev Event) error {
	n.log.InfoContext(ctx, "reservation event",
		slog.String("kind", string(ev.Kind)),
		slog.String("audience", string(ev.Audience)),
		slog.String("reservation_id", ev.ReservationID.String()),
		slog.String("resource_id", ev.ResourceID.String()),
		slog.String("owner_id", ev.OwnerID),
		slog.Time("start_time", ev.StartTime),
		slog.Time("end_time", ev.EndTime),
		slog.Float64("price", ev.Price),
	)
	return nil
}
