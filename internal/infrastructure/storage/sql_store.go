package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/ports"
	"RiskMonitor/internal/query"
)

// SQLStore reads records and logs and writes commands over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect query.Dialect
	timeout time.Duration
}

var _ ports.RecordStore = (*SQLStore)(nil)

// NewSQLStore wires a sql.DB speaking the given dialect. A positive timeout
// bounds every statement.
func NewSQLStore(db *sql.DB, dialect query.Dialect, timeout time.Duration) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, timeout: timeout}
}

// QueryRecords runs a record query and normalizes each row.
func (s *SQLStore) QueryRecords(ctx context.Context, q query.Query) ([]domain.Record, error) {
	if q.Collection != query.CollectionRecords {
		return nil, fetchErr(q, fmt.Errorf("not a record collection"))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stmt, args, err := q.ToSQL(s.dialect)
	if err != nil {
		return nil, fetchErr(q, fmt.Errorf("build query: %w", err))
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fetchErr(q, fmt.Errorf("query records: %w", err))
	}
	defer rows.Close()

	records := make([]domain.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fetchErr(q, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fetchErr(q, fmt.Errorf("rows iteration: %w", err))
	}

	return records, nil
}

// QueryLogs runs a log query.
func (s *SQLStore) QueryLogs(ctx context.Context, q query.Query) ([]domain.LogEntry, error) {
	if q.Collection != query.CollectionLogs {
		return nil, fetchErr(q, fmt.Errorf("not a log collection"))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stmt, args, err := q.ToSQL(s.dialect)
	if err != nil {
		return nil, fetchErr(q, fmt.Errorf("build query: %w", err))
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fetchErr(q, fmt.Errorf("query logs: %w", err))
	}
	defer rows.Close()

	entries := make([]domain.LogEntry, 0)
	for rows.Next() {
		var (
			entry   domain.LogEntry
			level   sql.NullString
			created any
		)
		if err := rows.Scan(&entry.ID, &entry.Message, &level, &created); err != nil {
			return nil, fetchErr(q, fmt.Errorf("scan log: %w", err))
		}
		entry.Level = level.String
		if entry.CreatedAt, err = scanTime(created); err != nil {
			return nil, fetchErr(q, fmt.Errorf("scan log %d: %w", entry.ID, err))
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fetchErr(q, fmt.Errorf("rows iteration: %w", err))
	}

	return entries, nil
}

// InsertCommand appends a command row.
func (s *SQLStore) InsertCommand(ctx context.Context, cmd domain.CommandRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stmt, args, err := sq.Insert(string(query.CollectionCommands)).
		Columns("id", "command", "status", "created_at").
		Values(cmd.ID, cmd.Command, cmd.Status, cmd.IssuedAt.UTC()).
		PlaceholderFormat(s.dialect.Placeholder).
		ToSql()
	if err != nil {
		return writeErr(fmt.Errorf("build insert: %w", err))
	}

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return writeErr(fmt.Errorf("insert command: %w", err))
	}
	return nil
}

// Migrate creates the collections when they are missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	name := "schema_" + s.dialect.Name + ".sql"
	ddl, err := schemas.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.Record, error) {
	var (
		raw              rawRecord
		text, url        sql.NullString
		collected        any
		userInfo, legacy []byte
		analysis         []byte
		flat             sql.NullFloat64
	)
	if err := row.Scan(&raw.ID, &text, &url, &collected, &userInfo, &legacy, &analysis, &flat); err != nil {
		return domain.Record{}, fmt.Errorf("scan record: %w", err)
	}

	raw.Text = text.String
	raw.URL = url.String
	if flat.Valid {
		raw.RiskScore = &flat.Float64
	}

	at, err := scanTime(collected)
	if err != nil {
		return domain.Record{}, fmt.Errorf("record %s collected_at: %w", raw.ID, err)
	}
	raw.CollectedAt = flexTime(at)

	if raw.UserInfo, err = decodeJSONColumn[rawUser](userInfo); err != nil {
		return domain.Record{}, fmt.Errorf("record %s user_info: %w", raw.ID, err)
	}
	if raw.User, err = decodeJSONColumn[rawUser](legacy); err != nil {
		return domain.Record{}, fmt.Errorf("record %s user: %w", raw.ID, err)
	}
	if raw.RiskAnalysis, err = decodeJSONColumn[rawAnalysis](analysis); err != nil {
		return domain.Record{}, fmt.Errorf("record %s risk_analysis: %w", raw.ID, err)
	}

	return normalize(raw), nil
}

func fetchErr(q query.Query, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &domain.FetchError{Collection: string(q.Collection), Err: err}
}

func writeErr(err error) error {
	return &domain.WriteError{Collection: string(query.CollectionCommands), Err: err}
}
