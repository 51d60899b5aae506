package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ramsey-B/pollen/pkg/models"
)

type SettingsRepo interface {
	// Get returns the integration settings row, or a 404 when none has been saved.
	Get(ctx context.Context) (*models.AppSettings, error)
	Upsert(ctx context.Context, settings *models.AppSettings) error
}

type LogRepo interface {
	// Create inserts entry and assigns its ID.
	Create(ctx context.Context, entry *models.IntegrationLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.IntegrationLog, error)
	List(ctx context.Context, filter models.LogFilter) ([]models.IntegrationLog, error)
}

type ChannelRepo interface {
	ReadByQuery(ctx context.Context, query models.ChannelQuery) ([]models.Channel, error)
	CreateOne(ctx context.Context, channel *models.Channel) error
	UpdateOne(ctx context.Context, id uuid.UUID, update models.ChannelUpdate) (*models.Channel, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
}

var (
	_ SettingsRepo = (*SettingsRepository)(nil)
	_ LogRepo      = (*LogRepository)(nil)
	_ ChannelRepo  = (*ChannelRepository)(nil)
)
