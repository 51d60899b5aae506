package handlers

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/repositories"
)

// SettingsHandler manages the integration settings row.
type SettingsHandler struct {
	repo repositories.SettingsRepo
}

func NewSettingsHandler(repo repositories.SettingsRepo) *SettingsHandler {
	return &SettingsHandler{repo: repo}
}

// UpdateSettingsRequest is the PUT /settings body. An empty or redacted secret keeps the
// stored one.
type UpdateSettingsRequest struct {
	FacebookAppID      string `json:"facebook_app_id" validate:"required"`
	FacebookAppSecret  string `json:"facebook_app_secret"`
	PublicURL          string `json:"public_url" validate:"required,url"`
	WebhookVerifyToken string `json:"webhook_verify_token" validate:"required"`
	WebhookURL         string `json:"webhook_url" validate:"required,url"`
}

// RegisterRoutes registers settings routes
func (h *SettingsHandler) RegisterRoutes(g *echo.Group) {
	settings := g.Group("/settings")
	settings.GET("", h.Get)
	settings.PUT("", h.Update)
}

// Get handles GET /settings
func (h *SettingsHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	settings, err := h.repo.Get(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, settings.Redacted())
}

// Update handles PUT /settings
func (h *SettingsHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	var req UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	settings := &models.AppSettings{
		FacebookAppID:      strings.TrimSpace(req.FacebookAppID),
		FacebookAppSecret:  strings.TrimSpace(req.FacebookAppSecret),
		PublicURL:          strings.TrimSpace(req.PublicURL),
		WebhookVerifyToken: strings.TrimSpace(req.WebhookVerifyToken),
		WebhookURL:         strings.TrimSpace(req.WebhookURL),
	}

	if settings.FacebookAppSecret == "" || settings.FacebookAppSecret == models.RedactedSecret {
		existing, err := h.repo.Get(ctx)
		switch {
		case err == nil:
			settings.FacebookAppSecret = existing.FacebookAppSecret
		case !repositories.IsNotFound(err):
			return err
		}
	}

	// whitespace-only values pass the required rule
	if missing := settings.MissingFields(); len(missing) > 0 {
		return BadRequest(strings.Join(missing, ", ") + " required")
	}

	if err := h.repo.Upsert(ctx, settings); err != nil {
		return err
	}

	return SuccessResponse(c, settings.Redacted())
}
