package httpapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger attaches a request-scoped logger to the request context and
// logs the outcome of every request. Errors are rendered here so the logged
// status is the one sent.
func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			lc := base.With().
				Str("method", req.Method).
				Str("path", c.Path()).
				Str("remote_ip", c.RealIP())
			if rid != "" {
				lc = lc.Str("request_id", rid)
			}
			l := lc.Logger()
			c.SetRequest(req.WithContext(l.WithContext(req.Context())))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
			}
			status := c.Response().Status

			// Guards may have added fields to the context logger.
			done := zerolog.Ctx(c.Request().Context())
			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = done.Error()
			case status >= 400:
				ev = done.Warn()
			default:
				ev = done.Info().Int64("bytes", c.Response().Size)
			}
			if err != nil {
				ev = ev.Str("error", err.Error())
			}
			ev.Int("status", status).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("request completed")
			return nil
		}
	}
}
