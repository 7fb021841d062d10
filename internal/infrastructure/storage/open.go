package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"RiskMonitor/internal/config"
	"RiskMonitor/internal/ports"
	"RiskMonitor/internal/query"
)

//go:embed schema_*.sql
var schemas embed.FS

// Supported values of database.driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open builds the record store named by the database config.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (ports.RecordStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if logger != nil {
		logger.Info("open record store", "driver", driver)
	}

	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return finishSQL(ctx, NewSQLStore(db, query.SQLite, cfg.QueryTimeout), cfg.Migrate)
	case DriverPostgres:
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return finishSQL(ctx, NewSQLStore(db, query.Postgres, cfg.QueryTimeout), cfg.Migrate)
	}

	return nil, fmt.Errorf("database driver %q is not supported", cfg.Driver)
}

// OpenSQLite opens a SQLite database with UTC time-formatting and a busy
// timeout. In-memory databases are pinned to one connection.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	if !strings.Contains(dsn, "_time_format=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_time_format=sqlite"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{"PRAGMA busy_timeout = 10000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}

	return db, nil
}

func finishSQL(ctx context.Context, store *SQLStore, migrate bool) (ports.RecordStore, error) {
	if !migrate {
		return store, nil
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
