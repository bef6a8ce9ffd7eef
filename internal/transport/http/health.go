package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthServer serves /healthz (process liveness) and /readyz (store reachability).
func NewHealthServer(p Pinger, readyTimeout time.Duration, log *slog.Logger) *echo.Echo {
	if log == nil {
		log = slog.Default()
	}
	if readyTimeout <= 0 {
		readyTimeout = 2 * time.Second
	}
	log = log.With(slog.String("component", "http.health"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/readyz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			log.Warn("readiness check failed", slog.Any("err", err))
			return c.String(http.StatusServiceUnavailable, "unavailable")
		}
		return c.String(http.StatusOK, "ready")
	})
	return e
}
