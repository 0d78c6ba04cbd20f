package handlers

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/caching"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles liveness and readiness endpoints
type HealthHandlers struct {
	db       Pinger
	redisSvc caching.CacheService
	log      *zap.Logger
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(db Pinger, redisSvc caching.CacheService, log *zap.Logger) *HealthHandlers {
	return &HealthHandlers{
		db:       db,
		redisSvc: redisSvc,
		log:      log,
	}
}

// Root handles GET /
func (h *HealthHandlers) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Server is running"})
}

// ReadinessCheck determines if the application is ready to serve traffic
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	services := map[string]string{"database": "healthy", "redis": "healthy"}
	ready := true

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("database not ready", zap.Error(err))
		services["database"] = "unhealthy"
		ready = false
	}
	if err := h.redisSvc.Ping(ctx); err != nil {
		h.log.Warn("redis not ready", zap.Error(err))
		services["redis"] = "unhealthy"
		ready = false
	}

	if !ready {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not_ready",
			"message":  "Critical services unavailable",
			"services": services,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"message":   "All systems operational",
		"services":  services,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
