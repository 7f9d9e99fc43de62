package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eslsoft/tafsirnet/internal/infrastructure/config"
)

// NewConnection opens the configured corpus database and returns it together
// with the ent dialect name used to build portable SQL.
func NewConnection(cfg *config.Config) (*sql.DB, string, func(), error) {
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, "", nil, fmt.Errorf("determine database driver: %w", err)
	}
	dsn, err := cfg.DatabaseURL()
	if err != nil {
		return nil, "", nil, fmt.Errorf("determine database dsn: %w", err)
	}

	switch driver {
	case "postgres":
		db, err := openPostgres(cfg, dsn)
		if err != nil {
			return nil, "", nil, err
		}
		return db, dialect.Postgres, func() { _ = db.Close() }, nil
	case "sqlite3":
		db, err := openSQLite(dsn)
		if err != nil {
			return nil, "", nil, err
		}
		return db, dialect.SQLite, func() { _ = db.Close() }, nil
	default:
		return nil, "", nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openPostgres(cfg *config.Config, dsn string) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if cfg.Database.LogSQL {
		logger := log.New(log.Writer(), "pgx ", log.LstdFlags|log.Lmicroseconds)
		connCfg.Tracer = &tracelog.TraceLog{
			Logger: tracelog.LoggerFunc(func(_ context.Context, lvl tracelog.LogLevel, msg string, data map[string]any) {
				logger.Printf("level=%s msg=%s data=%v", lvl, msg, data)
			}),
			LogLevel: tracelog.LogLevelTrace,
		}
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(10)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a SQLite database at dsn. Exported for tests and tooling.
func OpenSQLite(dsn string) (*sql.DB, error) {
	return openSQLite(dsn)
}

func openSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}
