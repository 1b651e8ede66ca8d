package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"fashionshop/internal/logger"

	"github.com/labstack/echo/v4"
)

type Limiter interface {
	Allow(ctx context.Context, identifier string) (allowed bool, remaining int, reset time.Time, err error)
	Limit() int
}

// RateLimit はユーザー単位（ゲストはIP単位）で制限する。limiterがnilなら何もしない。
// Redisが落ちているときは通す。
func RateLimit(limiter Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(c echo.Context) error {
			identifier := "ip:" + c.RealIP()
			if userID, ok := c.Get(CtxUserIDKey).(int64); ok && userID > 0 {
				identifier = fmt.Sprintf("user:%d", userID)
			}

			ctx := c.Request().Context()
			allowed, remaining, reset, err := limiter.Allow(ctx, identifier)
			if err != nil {
				logger.Error(ctx).Err(err).Str("identifier", identifier).Msg("rate limiter error")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit()))
			h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

			if !allowed {
				logger.Warn(ctx).Str("identifier", identifier).Msg("rate limit exceeded")
				return c.JSON(http.StatusTooManyRequests, errorJSON("too many requests"))
			}
			return next(c)
		}
	}
}
