package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/pollen/pkg/database"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/tracing"
)

const channelsTable = "omni_channels"

var (
	channelStruct  = database.NewModel(new(models.Channel))
	channelColumns = []string{"id", "page_id", "page_name", "token", "is_enabled", "expired_date", "source", "created_at", "updated_at"}
)

// ChannelRepository reads and writes omni_channels. It has no upsert: callers query by
// (source, page_id) and then create or update.
type ChannelRepository struct {
	*Repository
}

func NewChannelRepository(db database.DB, logger ectologger.Logger) *ChannelRepository {
	return &ChannelRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *ChannelRepository) ReadByQuery(ctx context.Context, q models.ChannelQuery) ([]models.Channel, error) {
	ctx, span := tracing.StartSpan(ctx, "ChannelRepository.ReadByQuery")
	defer span.End()

	sb := channelStruct.SelectFrom(channelsTable)
	if q.Source != "" {
		sb.Where(sb.Equal("source", string(q.Source)))
	}
	if q.PageID != "" {
		sb.Where(sb.Equal("page_id", q.PageID))
	}
	if q.IsEnabled != nil {
		sb.Where(sb.Equal("is_enabled", *q.IsEnabled))
	}
	sb.OrderBy("created_at").Limit(pageLimit(q.Limit))
	if q.Offset > 0 {
		sb.Offset(q.Offset)
	}

	query, args := sb.Build()
	channels := []models.Channel{}
	if err := r.DB().SelectContext(ctx, &channels, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source":  q.Source,
			"page_id": q.PageID,
		}).Error("failed to query channels")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query channels")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"source":  q.Source,
		"page_id": q.PageID,
	}).Debugf("Found %d %s", len(channels), channelsTable)
	return channels, nil
}

func (r *ChannelRepository) CreateOne(ctx context.Context, channel *models.Channel) error {
	ctx, span := tracing.StartSpan(ctx, "ChannelRepository.CreateOne")
	defer span.End()

	if channel.ID == uuid.Nil {
		channel.ID = uuid.New()
	}
	if !channel.Source.Valid() {
		return BadRequest("invalid channel source " + string(channel.Source))
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(channelsTable).
		Cols("id", "page_id", "page_name", "token", "is_enabled", "expired_date", "source", "created_at", "updated_at").
		Values(channel.ID, channel.PageID, channel.PageName, channel.Token, channel.IsEnabled, channel.ExpiredDate,
			string(channel.Source), database.Now(), database.Now()).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	if err := r.DB().QueryRowContext(ctx, query, args...).Scan(&channel.CreatedAt, &channel.UpdatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"channel_id": channel.ID,
			"page_id":    channel.PageID,
		}).Error("failed to create channel")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create channel")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"channel_id": channel.ID,
		"page_id":    channel.PageID,
	}).Debugf("Created %s", channelsTable)
	return nil
}

// UpdateOne applies the non-nil fields of update and returns the stored row.
func (r *ChannelRepository) UpdateOne(ctx context.Context, id uuid.UUID, update models.ChannelUpdate) (*models.Channel, error) {
	ctx, span := tracing.StartSpan(ctx, "ChannelRepository.UpdateOne")
	defer span.End()

	if update.Empty() {
		return nil, BadRequest("channel update has no fields")
	}

	ub := database.NewUpdateBuilder()
	assignments := []string{}
	if update.PageName != nil {
		assignments = append(assignments, ub.Assign("page_name", *update.PageName))
	}
	if update.Token != nil {
		assignments = append(assignments, ub.Assign("token", *update.Token))
	}
	if update.IsEnabled != nil {
		assignments = append(assignments, ub.Assign("is_enabled", *update.IsEnabled))
	}
	assignments = append(assignments, ub.Assign("updated_at", database.Now()))

	ub.Update(channelsTable).
		Set(assignments...).
		Where(ub.Equal("id", id))
	ub.SQL("RETURNING " + strings.Join(channelColumns, ", "))

	query, args := ub.Build()
	var channel models.Channel
	err := r.DB().GetContext(ctx, &channel, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("channel %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("channel_id", id).Error("failed to update channel")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update channel")
	}

	r.logger.WithContext(ctx).WithField("channel_id", id).Debugf("Updated %s", channelsTable)
	return &channel, nil
}

func (r *ChannelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	ctx, span := tracing.StartSpan(ctx, "ChannelRepository.GetByID")
	defer span.End()

	sb := channelStruct.SelectFrom(channelsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var channel models.Channel
	err := r.DB().GetContext(ctx, &channel, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("channel %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("channel_id", id).Error("failed to get channel by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get channel by ID")
	}

	return &channel, nil
}
