package ports

import (
	"context"
	"time"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/query"
)

// RecordReader executes record queries; failures are *domain.FetchError.
type RecordReader interface {
	QueryRecords(ctx context.Context, q query.Query) ([]domain.Record, error)
}

// LogReader executes log queries; failures are *domain.FetchError.
type LogReader interface {
	QueryLogs(ctx context.Context, q query.Query) ([]domain.LogEntry, error)
}

// CommandWriter appends commands; failures are *domain.WriteError.
type CommandWriter interface {
	InsertCommand(ctx context.Context, cmd domain.CommandRecord) error
}

// RecordStore is the persistence boundary of the dashboard.
type RecordStore interface {
	RecordReader
	LogReader
	CommandWriter
	Close() error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
