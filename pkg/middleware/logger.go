package middleware

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/pollen/pkg/context"
)

// Logger writes one entry per request. Only the path is logged: the callback query
// carries the OAuth code.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				// render now so the logged status is the one sent
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			ctx := req.Context()

			log := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":    appctx.GetRequestID(ctx),
				"user_id":       appctx.GetUserID(ctx),
				"method":        req.Method,
				"path":          req.URL.Path,
				"route":         c.Path(),
				"status":        res.Status,
				"remote_ip":     c.RealIP(),
				"user_agent":    req.UserAgent(),
				"latency_ms":    time.Since(start).Milliseconds(),
				"response_size": res.Size,
			})
			switch {
			case res.Status >= http.StatusInternalServerError:
				log.Error("Request")
			case res.Status >= http.StatusBadRequest:
				log.Warn("Request")
			default:
				log.Info("Request")
			}
			return nil
		}
	}
}
