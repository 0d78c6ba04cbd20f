package middleware

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/caching"
	"storefront/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RateLimit allows at most limit requests per client IP in each window.
// When Redis cannot be reached the request is let through.
func RateLimit(cache caching.CacheService, limit int, window time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Path() + ":" + c.RealIP()
			limited, err := cache.IsRateLimited(c.Request().Context(), key, limit, window)
			if err != nil {
				log.Warn("rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			if limited {
				c.Response().Header().Set("Retry-After", retryAfter(window))
				return c.JSON(http.StatusTooManyRequests,
					common.CreateErrorResponse("RATE_LIMITED", "Too many requests, please slow down", nil))
			}
			return next(c)
		}
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
