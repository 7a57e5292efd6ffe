package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Health is the liveness probe.  It returns a plain "ok" and never touches
// a dependency.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ReadyHandler reports whether MySQL, and Redis when configured, answer.
type ReadyHandler struct {
	DB    Pinger
	Redis *redis.Client
	Log   *zap.Logger
}

func (h *ReadyHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := echo.Map{"mysql": "ok"}
	status := http.StatusOK
	if err := h.DB.PingContext(ctx); err != nil {
		h.Log.Warn("readiness: mysql ping failed", zap.Error(err))
		checks["mysql"] = "down"
		status = http.StatusServiceUnavailable
	}
	if h.Redis != nil {
		checks["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			// the cache and the rate limiter fail open, so Redis is reported
			// but never makes the service unready
			h.Log.Warn("readiness: redis ping failed", zap.Error(err))
			checks["redis"] = "down"
		}
	}
	return c.JSON(status, checks)
}
