package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimit is a fixed-window limiter keyed by authenticated caller (or IP
// for anonymous requests), backed by redis INCR+EXPIRE so the window is
// shared across instances. A nil client disables limiting; redis errors
// fail open so the store never takes reservations down with it.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rdb == nil {
				return next(c)
			}

			key := "ratelimit:" + c.RealIP()
			if callerID, ok := CallerID(c); ok {
				key = fmt.Sprintf("ratelimit:user:%s", callerID)
			}

			ctx := c.Request().Context()
			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				logrus.WithError(err).Warn("rate limiter unavailable, allowing request")
				return next(c)
			}
			if count == 1 {
				rdb.Expire(ctx, key, window)
			}
			if count > int64(limit) {
				return echo.NewHTTPError(http.StatusTooManyRequests,
					"rate limit exceeded, please try again later")
			}

			return next(c)
		}
	}
}
