package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/pollen/pkg/database"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IntegrationLog is an audit entry written by the connector workflow. Entries are never
// updated after insert.
type IntegrationLog struct {
	ID             uuid.UUID                `db:"id" json:"id"`
	Timestamp      time.Time                `db:"timestamp" json:"timestamp"`
	Level          LogLevel                 `db:"level" json:"level"`
	Message        string                   `db:"message" json:"message"`
	Context        string                   `db:"context" json:"context"`
	StackTrace     string                   `db:"stack_trace" json:"stack_trace"`
	RequestString  string                   `db:"request_string" json:"request_string"`
	ResponseString string                   `db:"response_string" json:"response_string"`
	UserID         *string                  `db:"user_id" json:"user_id,omitempty"`
	ErrorKind      *string                  `db:"error_kind" json:"error_kind,omitempty"`
	ErrorChain     database.JSONB[[]string] `db:"error_chain" json:"error_chain"`
}

// TableName returns the database table name
func (IntegrationLog) TableName() string {
	return "integration_logs"
}

type LogFilter struct {
	Level  LogLevel
	UserID string
	Limit  int
	Offset int
}
