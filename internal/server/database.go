package server

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/repository"
)

// ConnectDB opens the configured store, pings it and applies the schema when
// auto_migrate is set. The pool is nil for sqlite.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *zap.Logger) (*entsql.Driver, *pgxpool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("db.connect", zap.String("driver", cfg.Driver))
	drv, pool, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("db.connect.failed", zap.Error(err))
		return nil, nil, err
	}

	if err := PingDB(ctx, drv, logger, cfg.DialTimeout); err != nil {
		CloseDB(drv, pool, logger)
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, drv, logger); err != nil {
			CloseDB(drv, pool, logger)
			return nil, nil, err
		}
	}
	logger.Info("db.connect.ok")
	return drv, pool, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, drv *entsql.Driver, logger *zap.Logger, timeout time.Duration) error {
	return repository.HealthCheck(ctx, drv, timeout, logger)
}

// CloseDB closes the database connections gracefully
func CloseDB(drv *entsql.Driver, pool *pgxpool.Pool, logger *zap.Logger) {
	repository.Close(drv, pool, logger)
}
