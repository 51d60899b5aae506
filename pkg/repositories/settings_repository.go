package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/pollen/pkg/database"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/tracing"
)

const settingsTable = "integration_settings"

var settingsStruct = database.NewModel(new(models.AppSettings))

// SettingsRepository stores the single integration_settings row.
type SettingsRepository struct {
	*Repository
}

func NewSettingsRepository(db database.DB, logger ectologger.Logger) *SettingsRepository {
	return &SettingsRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *SettingsRepository) Get(ctx context.Context) (*models.AppSettings, error) {
	ctx, span := tracing.StartSpan(ctx, "SettingsRepository.Get")
	defer span.End()

	sb := settingsStruct.SelectFrom(settingsTable)
	sb.OrderBy("created_at").Limit(1)

	query, args := sb.Build()
	var settings models.AppSettings
	err := r.DB().GetContext(ctx, &settings, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("integration settings have not been configured")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get integration settings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get integration settings")
	}

	r.logger.WithContext(ctx).WithField("settings_id", settings.ID).Debugf("Retrieved %s", settingsTable)
	return &settings, nil
}

// Upsert updates the existing row in place, or inserts one when the table is empty.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.AppSettings) error {
	ctx, span := tracing.StartSpan(ctx, "SettingsRepository.Upsert")
	defer span.End()

	existing, err := r.Get(ctx)
	switch {
	case IsNotFound(err):
		return r.insert(ctx, settings)
	case err != nil:
		return err
	}

	settings.ID = existing.ID
	settings.CreatedAt = existing.CreatedAt

	ub := database.NewUpdateBuilder()
	ub.Update(settingsTable).
		Set(
			ub.Assign("facebook_app_id", settings.FacebookAppID),
			ub.Assign("facebook_app_secret", settings.FacebookAppSecret),
			ub.Assign("public_url", settings.PublicURL),
			ub.Assign("webhook_verify_token", settings.WebhookVerifyToken),
			ub.Assign("webhook_url", settings.WebhookURL),
			ub.Assign("updated_at", database.Now()),
		).
		Where(ub.Equal("id", settings.ID))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	if err := r.DB().QueryRowContext(ctx, query, args...).Scan(&settings.UpdatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("settings_id", settings.ID).Error("failed to update integration settings")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update integration settings")
	}

	r.logger.WithContext(ctx).WithField("settings_id", settings.ID).Debugf("Updated %s", settingsTable)
	return nil
}

func (r *SettingsRepository) insert(ctx context.Context, settings *models.AppSettings) error {
	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(settingsTable).
		Cols("id", "facebook_app_id", "facebook_app_secret", "public_url", "webhook_verify_token", "webhook_url", "created_at", "updated_at").
		Values(settings.ID, settings.FacebookAppID, settings.FacebookAppSecret, settings.PublicURL,
			settings.WebhookVerifyToken, settings.WebhookURL, database.Now(), database.Now()).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	if err := r.DB().QueryRowContext(ctx, query, args...).Scan(&settings.CreatedAt, &settings.UpdatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("settings_id", settings.ID).Error("failed to create integration settings")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create integration settings")
	}

	r.logger.WithContext(ctx).WithField("settings_id", settings.ID).Debugf("Created %s", settingsTable)
	return nil
}
