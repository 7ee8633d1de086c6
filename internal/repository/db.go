package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type Config struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Open connects to the configured database and wraps it in an ent driver. The
// pgx pool is returned for postgres and is nil for sqlite.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*entsql.Driver, *pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "sqlite", dialect.SQLite:
		return openSQLite(cfg, logger)
	case dialect.Postgres, "":
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *zap.Logger) (*entsql.Driver, *pgxpool.Pool, error) {
	logger.Info("db.connect", zap.String("driver", dialect.Postgres))
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("db.connect.failed", zap.Error(err))
		return nil, nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "deeds-tracker"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("db.connect.failed", zap.Error(err))
		return nil, nil, err
	}

	// Wrap pool as *sql.DB for ent
	db := stdlib.OpenDBFromPool(pool)
	drv := entsql.OpenDB(dialect.Postgres, db)

	logger.Info("db.connect.ok", zap.String("driver", dialect.Postgres))
	return drv, pool, nil
}

// openSQLite opens a modernc sqlite database. A DSN without a "file:" prefix
// names a shared in-memory database.
func openSQLite(cfg Config, logger *zap.Logger) (*entsql.Driver, *pgxpool.Pool, error) {
	dsn := cfg.DSN
	if !strings.HasPrefix(dsn, "file:") {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", dsn)
	}
	dsn += sqliteParams(dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("db.connect.failed", zap.String("driver", dialect.SQLite), zap.Error(err))
		return nil, nil, err
	}
	// one writer; also keeps a shared in-memory database alive
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	logger.Info("db.connect.ok", zap.String("driver", dialect.SQLite))
	return entsql.OpenDB(dialect.SQLite, db), nil, nil
}

func sqliteParams(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// Close closes the database connections gracefully
func Close(drv *entsql.Driver, pool *pgxpool.Pool, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("db.close")
	if drv != nil {
		if err := drv.Close(); err != nil {
			logger.Error("db.close.failed", zap.Error(err))
		}
	}
	if pool != nil {
		pool.Close()
	}
}

// HealthCheck pings using database/sql to catch DSN issues early.
func HealthCheck(ctx context.Context, drv *entsql.Driver, timeout time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := drv.DB().PingContext(ctx); err != nil {
		logger.Warn("db.ping.failed", zap.Error(err))
		return err
	}
	logger.Debug("db.ping.ok")
	return nil
}
