package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/repositories"
)

// ChannelHandler exposes the synchronized channels read-only.
type ChannelHandler struct {
	repo repositories.ChannelRepo
}

func NewChannelHandler(repo repositories.ChannelRepo) *ChannelHandler {
	return &ChannelHandler{repo: repo}
}

// RegisterRoutes registers channel routes
func (h *ChannelHandler) RegisterRoutes(g *echo.Group) {
	channels := g.Group("/channels")
	channels.GET("", h.List)
	channels.GET("/:id", h.GetByID)
}

// List handles GET /channels?source=&page_id=&is_enabled=&limit=&offset=
func (h *ChannelHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	query := models.ChannelQuery{
		Source: models.ChannelSource(c.QueryParam("source")),
		PageID: c.QueryParam("page_id"),
	}
	if query.Source != "" && !query.Source.Valid() {
		return BadRequest("invalid source: must be one of Facebook, Tiktok, Zalo")
	}

	var err error
	if query.IsEnabled, err = QueryBool(c, "is_enabled"); err != nil {
		return err
	}
	if query.Limit, err = QueryInt(c, "limit"); err != nil {
		return err
	}
	if query.Offset, err = QueryInt(c, "offset"); err != nil {
		return err
	}

	channels, err := h.repo.ReadByQuery(ctx, query)
	if err != nil {
		return err
	}
	if channels == nil {
		channels = []models.Channel{}
	}

	return SuccessResponse(c, ListResponse[models.Channel]{Data: channels, Limit: query.Limit, Offset: query.Offset})
}

// GetByID handles GET /channels/:id
func (h *ChannelHandler) GetByID(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	channel, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, channel)
}
