package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/pollen/pkg/context"
	"github.com/Ramsey-B/pollen/pkg/tracing"
)

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error renders httperror and echo errors with their status. Any other error is a 500
// whose text stays in the service log.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		status, message, meta := describe(err)

		log := logger.WithContext(ctx).WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			log.Error("request failed")
		} else {
			log.Warn("request rejected")
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, ErrorResponse{
			Message:   message,
			RequestID: appctx.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}

func describe(err error) (int, string, map[string]any) {
	if httperror.IsHTTPError(err) {
		he := httperror.ToHTTPError(err)
		meta := he.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		return httperror.GetStatusCode(err), he.Error(), meta
	}

	var ee *echo.HTTPError
	if errors.As(err, &ee) {
		message := http.StatusText(ee.Code)
		if ee.Message != nil {
			message = fmt.Sprint(ee.Message)
		}
		return ee.Code, message, map[string]any{}
	}

	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), map[string]any{}
}
