package connector

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/pollen/pkg/context"
	"github.com/Ramsey-B/pollen/pkg/database"
	"github.com/Ramsey-B/pollen/pkg/failure"
	"github.com/Ramsey-B/pollen/pkg/models"
	"github.com/Ramsey-B/pollen/pkg/repositories"
)

// Auditor writes integration_logs entries on behalf of the acting user.
type Auditor struct {
	logs   repositories.LogRepo
	logger ectologger.Logger
}

func NewAuditor(logs repositories.LogRepo, logger ectologger.Logger) *Auditor {
	return &Auditor{logs: logs, logger: logger}
}

// Info records a workflow step. Write failures only reach the service log.
func (a *Auditor) Info(ctx context.Context, step, message string) {
	_, _ = a.write(ctx, &models.IntegrationLog{
		Level:   models.LogLevelInfo,
		Message: message,
		Context: step,
	})
}

// Warn records a non-fatal failure, such as a page skipped under the continue policy.
func (a *Auditor) Warn(ctx context.Context, step, message string, err error) {
	entry := &models.IntegrationLog{
		Level:   models.LogLevelWarn,
		Message: message,
		Context: step,
	}
	describe(entry, err)
	_, _ = a.write(ctx, entry)
}

// Failure records err at error level and returns the entry id for the error redirect.
func (a *Auditor) Failure(ctx context.Context, step string, err error) (uuid.UUID, error) {
	entry := &models.IntegrationLog{
		Level:   models.LogLevelError,
		Message: err.Error(),
		Context: step,
	}
	if fe, ok := err.(*failure.Error); ok && fe.Message != "" {
		entry.Message = fe.Message
	}
	describe(entry, err)
	return a.write(ctx, entry)
}

func describe(entry *models.IntegrationLog, err error) {
	if err == nil {
		return
	}
	kind := string(failure.KindOf(err))
	entry.ErrorKind = &kind
	entry.ErrorChain = database.JSONB[[]string]{Data: failure.Chain(err)}
	entry.StackTrace = failure.StackTrace(err)
}

func (a *Auditor) write(ctx context.Context, entry *models.IntegrationLog) (uuid.UUID, error) {
	entry.UserID = appctx.GetUserIDPtr(ctx)
	if err := a.logs.Create(ctx, entry); err != nil {
		a.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"level":   entry.Level,
			"message": entry.Message,
			"step":    entry.Context,
		}).Error("failed to write integration log entry")
		return uuid.Nil, err
	}
	return entry.ID, nil
}
