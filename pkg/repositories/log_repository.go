package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/pollen/pkg/database"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/tracing"
)

const logsTable = "integration_logs"

var logStruct = database.NewModel(new(models.IntegrationLog))

// LogRepository writes and reads integration audit entries.
type LogRepository struct {
	*Repository
}

func NewLogRepository(db database.DB, logger ectologger.Logger) *LogRepository {
	return &LogRepository{
		Repository: NewRepository(db, logger),
	}
}

func (r *LogRepository) Create(ctx context.Context, entry *models.IntegrationLog) error {
	ctx, span := tracing.StartSpan(ctx, "LogRepository.Create")
	defer span.End()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.ErrorChain.Data == nil {
		entry.ErrorChain.Data = []string{}
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(logsTable).
		Cols("id", "timestamp", "level", "message", "context", "stack_trace", "request_string",
			"response_string", "user_id", "error_kind", "error_chain").
		Values(entry.ID, entry.Timestamp, string(entry.Level), entry.Message, entry.Context, entry.StackTrace,
			entry.RequestString, entry.ResponseString, entry.UserID, entry.ErrorKind, entry.ErrorChain)

	query, args := ib.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"log_id": entry.ID,
			"level":  entry.Level,
		}).Error("failed to create integration log")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create integration log")
	}

	r.logger.WithContext(ctx).WithField("log_id", entry.ID).Debugf("Created %s", logsTable)
	return nil
}

func (r *LogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.IntegrationLog, error) {
	ctx, span := tracing.StartSpan(ctx, "LogRepository.GetByID")
	defer span.End()

	sb := logStruct.SelectFrom(logsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var entry models.IntegrationLog
	err := r.DB().GetContext(ctx, &entry, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("integration log %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("log_id", id).Error("failed to get integration log by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get integration log by ID")
	}

	return &entry, nil
}

// List returns entries newest first.
func (r *LogRepository) List(ctx context.Context, filter models.LogFilter) ([]models.IntegrationLog, error) {
	ctx, span := tracing.StartSpan(ctx, "LogRepository.List")
	defer span.End()

	sb := logStruct.SelectFrom(logsTable)
	if filter.Level != "" {
		sb.Where(sb.Equal("level", string(filter.Level)))
	}
	if filter.UserID != "" {
		sb.Where(sb.Equal("user_id", filter.UserID))
	}
	sb.OrderBy("timestamp DESC").Limit(pageLimit(filter.Limit))
	if filter.Offset > 0 {
		sb.Offset(filter.Offset)
	}

	query, args := sb.Build()
	entries := []models.IntegrationLog{}
	if err := r.DB().SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list integration logs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list integration logs")
	}

	r.logger.WithContext(ctx).Debugf("Listed %d %s", len(entries), logsTable)
	return entries, nil
}
