package middleware

import (
	"strconv"
	"time"

	"boilerplate/internal/ratelimit"

	"github.com/labstack/echo/v4"
)

// RateLimitはByUserならAuthGateの後ろに置く（未認証ならIPで数える）
func RateLimit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := c.RealIP()
			if l.Config().Mode == ratelimit.ByUser {
				if id, err := UserID(c); err == nil {
					identity = id
				}
			}

			if err := l.Allow(c.Request().Context(), identity); err != nil {
				if le, ok := err.(*ratelimit.LimitedError); ok {
					secs := int64(le.RetryAfter.Round(time.Second) / time.Second)
					c.Response().Header().Set("Retry-After", strconv.FormatInt(secs, 10))
				}
				return err
			}
			return next(c)
		}
	}
}
