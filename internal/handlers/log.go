package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/repositories"
)

// LogHandler serves integration log entries, so the error page can resolve a log_id.
type LogHandler struct {
	repo repositories.LogRepo
}

func NewLogHandler(repo repositories.LogRepo) *LogHandler {
	return &LogHandler{repo: repo}
}

// RegisterRoutes registers log routes
func (h *LogHandler) RegisterRoutes(g *echo.Group) {
	logs := g.Group("/logs")
	logs.GET("", h.List)
	logs.GET("/:id", h.GetByID)
}

// List handles GET /logs?level=&user_id=&limit=&offset=
func (h *LogHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := models.LogFilter{
		Level:  models.LogLevel(c.QueryParam("level")),
		UserID: c.QueryParam("user_id"),
	}
	switch filter.Level {
	case "", models.LogLevelInfo, models.LogLevelWarn, models.LogLevelError:
	default:
		return BadRequest("invalid level: must be one of info, warn, error")
	}

	var err error
	if filter.Limit, err = QueryInt(c, "limit"); err != nil {
		return err
	}
	if filter.Offset, err = QueryInt(c, "offset"); err != nil {
		return err
	}

	entries, err := h.repo.List(ctx, filter)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []models.IntegrationLog{}
	}

	return SuccessResponse(c, ListResponse[models.IntegrationLog]{Data: entries, Limit: filter.Limit, Offset: filter.Offset})
}

// GetByID handles GET /logs/:id
func (h *LogHandler) GetByID(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	entry, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, entry)
}
