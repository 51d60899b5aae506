package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/pollen/pkg/context"
)

// HeaderUserID carries the acting user when OIDC authentication is disabled.
const HeaderUserID = "X-User-ID"

// Context copies request metadata into the request context. The user header is only
// trusted when trustUserHeader is set; otherwise Authentication fills the user in.
func Context(trustUserHeader bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = appctx.SetRequestID(ctx, requestID)
			ctx = appctx.SetRoute(ctx, req.URL.Path)
			ctx = appctx.SetRemoteIP(ctx, c.RealIP())
			if trustUserHeader {
				ctx = appctx.SetUserID(ctx, req.Header.Get(HeaderUserID))
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
