package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"
)

const transactionsTable = "transactions"

// schemaDDL is shared by both dialects; {{uuid}} and {{timestamp}} are filled per dialect.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS transactions (
	id                  {{uuid}} PRIMARY KEY,
	profile             TEXT NOT NULL DEFAULT '',
	serial_number       TEXT NOT NULL DEFAULT '',
	document_number     TEXT NOT NULL CHECK (length(document_number) > 0),
	execution_date      DATE,
	presentation_date   DATE,
	registration_date   DATE,
	nature              TEXT NOT NULL DEFAULT '',
	buyers              TEXT NOT NULL DEFAULT '[]',
	sellers             TEXT NOT NULL DEFAULT '[]',
	volume_page         TEXT NOT NULL DEFAULT '',
	consideration_value NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (consideration_value >= 0),
	market_value        NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (market_value >= 0),
	pr_numbers          TEXT NOT NULL DEFAULT '[]',
	document_remarks    TEXT NOT NULL DEFAULT '',
	property_type       TEXT NOT NULL DEFAULT '',
	property_extent     TEXT NOT NULL DEFAULT '',
	village             TEXT NOT NULL DEFAULT '',
	street              TEXT NOT NULL DEFAULT '',
	survey_numbers      TEXT NOT NULL DEFAULT '[]',
	plot_number         TEXT NOT NULL DEFAULT '',
	schedule_remarks    TEXT NOT NULL DEFAULT '',
	source_file         TEXT NOT NULL DEFAULT '',
	source_sha256       TEXT NOT NULL DEFAULT '',
	original_data       TEXT,
	created_at          {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_document_number_idx ON transactions (document_number);
CREATE INDEX IF NOT EXISTS transactions_execution_date_idx ON transactions (execution_date);
CREATE INDEX IF NOT EXISTS transactions_created_at_idx ON transactions (created_at);
`

func ddl(d string) []string {
	r := strings.NewReplacer("{{uuid}}", "UUID", "{{timestamp}}", "TIMESTAMPTZ")
	if d == dialect.SQLite {
		r = strings.NewReplacer("{{uuid}}", "TEXT", "{{timestamp}}", "TIMESTAMP")
	}
	var stmts []string
	for _, s := range strings.Split(r.Replace(schemaDDL), ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// Migrate creates the schema when missing. It is idempotent.
func Migrate(ctx context.Context, drv *entsql.Driver, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, stmt := range ddl(drv.Dialect()) {
		if _, err := drv.DB().ExecContext(ctx, stmt); err != nil {
			logger.Error("db.migrate.failed", zap.Error(err))
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("db.migrate.ok", zap.String("dialect", drv.Dialect()))
	return nil
}
