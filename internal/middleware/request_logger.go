package middleware

import (
	"strconv"
	"time"

	"fashionshop/internal/logger"
	"fashionshop/internal/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestLogger は1リクエスト1行のログとHTTPメトリクスを記録する。
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			err := next(c)
			if err != nil {
				// echoのエラーハンドラでステータスを確定させる
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			duration := time.Since(start)

			metrics.HTTPRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPLatency.WithLabelValues(req.Method, route).Observe(duration.Seconds())

			ev := logger.Info(req.Context())
			if status >= 500 {
				ev = logger.Error(req.Context())
			} else if status >= 400 {
				ev = logger.Warn(req.Context())
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", route).
				Int("status", status).
				Dur("duration", duration).
				Str("ip", c.RealIP()).
				Str("request_id", requestID).
				Msg("request")

			return nil
		}
	}
}
