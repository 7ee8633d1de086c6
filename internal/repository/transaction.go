package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
)

var transactionColumns = []string{
	"id", "profile", "serial_number", "document_number",
	"execution_date", "presentation_date", "registration_date",
	"nature", "buyers", "sellers", "volume_page",
	"consideration_value", "market_value", "pr_numbers",
	"document_remarks", "property_type", "property_extent",
	"village", "street", "survey_numbers", "plot_number", "schedule_remarks",
	"source_file", "source_sha256", "original_data", "created_at",
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) (*entity.Transaction, error)
	Count(ctx context.Context, f TransactionFilter) (int, error)
	Query(ctx context.Context, f TransactionFilter, p Page) ([]*entity.Transaction, error)
	List(ctx context.Context, f TransactionFilter) ([]*entity.Transaction, error)
	DeleteAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type transactionRepository struct {
	drv    *entsql.Driver
	logger *zap.Logger
}

func NewTransactionRepository(drv *entsql.Driver, logger *zap.Logger) TransactionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &transactionRepository{drv: drv, logger: logger}
}

// Create inserts one transaction, assigning an id and creation time when unset.
func (r *transactionRepository) Create(ctx context.Context, tx *entity.Transaction) (*entity.Transaction, error) {
	if strings.TrimSpace(tx.DocumentNumber) == "" {
		return nil, common.InvalidInput("document number is required")
	}
	if tx.ConsiderationValue < 0 || tx.MarketValue < 0 {
		return nil, common.InvalidInput("values must not be negative")
	}

	rec := *tx
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	values := []any{
		rec.ID.String(), rec.Profile, rec.SerialNumber, rec.DocumentNumber,
		nullDate(rec.ExecutionDate), nullDate(rec.PresentationDate), nullDate(rec.RegistrationDate),
		rec.Nature, jsonList(rec.Buyers), jsonList(rec.Sellers), rec.VolumePage,
		rec.ConsiderationValue, rec.MarketValue, jsonList(rec.PRNumbers),
		rec.DocumentRemarks, rec.PropertyType, rec.PropertyExtent,
		rec.Village, rec.Street, jsonList(rec.SurveyNumbers), rec.PlotNumber, rec.ScheduleRemarks,
		rec.SourceFile, rec.SourceSHA256, nullJSON(rec.OriginalData), rec.CreatedAt,
	}
	query, args := entsql.Dialect(r.drv.Dialect()).
		Insert(transactionsTable).
		Columns(transactionColumns...).
		Values(values...).
		Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("transactions.create.failed",
			zap.String("document_number", rec.DocumentNumber),
			zap.Error(err))
		return nil, common.NewAppError("DATABASE_ERROR", "failed to save transaction", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return &rec, nil
}

func (r *transactionRepository) Count(ctx context.Context, f TransactionFilter) (int, error) {
	s := r.where(entsql.Dialect(r.drv.Dialect()).Select().Count().From(entsql.Table(transactionsTable)), f)
	query, args := s.Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return 0, r.dbError("count", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, r.dbError("count", err)
		}
	}
	return n, rows.Err()
}

// Query returns one page of matching transactions.
func (r *transactionRepository) Query(ctx context.Context, f TransactionFilter, p Page) ([]*entity.Transaction, error) {
	p = p.Normalize()
	s := r.selectAll(f).Limit(p.Size).Offset(p.Offset())
	return r.fetch(ctx, s)
}

// List returns every matching transaction; used for export.
func (r *transactionRepository) List(ctx context.Context, f TransactionFilter) ([]*entity.Transaction, error) {
	return r.fetch(ctx, r.selectAll(f))
}

func (r *transactionRepository) DeleteAll(ctx context.Context) (int64, error) {
	query, args := entsql.Dialect(r.drv.Dialect()).Delete(transactionsTable).Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, r.dbError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.dbError("delete", err)
	}
	r.logger.Info("transactions.deleted", zap.Int64("count", n))
	return n, nil
}

func (r *transactionRepository) Ping(ctx context.Context) error {
	return HealthCheck(ctx, r.drv, 2*time.Second, r.logger)
}

func (r *transactionRepository) selectAll(f TransactionFilter) *entsql.Selector {
	s := entsql.Dialect(r.drv.Dialect()).
		Select(transactionColumns...).
		From(entsql.Table(transactionsTable)).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("document_number"))
	return r.where(s, f)
}

func (r *transactionRepository) where(s *entsql.Selector, f TransactionFilter) *entsql.Selector {
	if ps := f.predicates(); len(ps) > 0 {
		s.Where(entsql.And(ps...))
	}
	return s
}

func (r *transactionRepository) fetch(ctx context.Context, s *entsql.Selector) ([]*entity.Transaction, error) {
	query, args := s.Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, r.dbError("query", err)
	}
	defer rows.Close()

	out := []*entity.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, r.dbError("scan", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, r.dbError("query", err)
	}
	return out, nil
}

func (r *transactionRepository) dbError(op string, err error) error {
	r.logger.Error("transactions."+op+".failed", zap.Error(err))
	return fmt.Errorf("transactions %s: %w: %w", op, common.ErrDatabase, err)
}

func scanTransaction(rows *entsql.Rows) (*entity.Transaction, error) {
	var (
		tx                          entity.Transaction
		id                          string
		execDate, presDate, regDate sql.NullTime
		buyers, sellers, prs, srvs  string
		original                    sql.NullString
	)
	err := rows.Scan(
		&id, &tx.Profile, &tx.SerialNumber, &tx.DocumentNumber,
		&execDate, &presDate, &regDate,
		&tx.Nature, &buyers, &sellers, &tx.VolumePage,
		&tx.ConsiderationValue, &tx.MarketValue, &prs,
		&tx.DocumentRemarks, &tx.PropertyType, &tx.PropertyExtent,
		&tx.Village, &tx.Street, &srvs, &tx.PlotNumber, &tx.ScheduleRemarks,
		&tx.SourceFile, &tx.SourceSHA256, &original, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tx.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("transaction id %q: %w", id, err)
	}
	tx.ExecutionDate = datePtr(execDate)
	tx.PresentationDate = datePtr(presDate)
	tx.RegistrationDate = datePtr(regDate)
	tx.Buyers = parseList(buyers)
	tx.Sellers = parseList(sellers)
	tx.PRNumbers = parseList(prs)
	tx.SurveyNumbers = parseList(srvs)
	if original.Valid && original.String != "" {
		tx.OriginalData = json.RawMessage(original.String)
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	return &tx, nil
}

func nullDate(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	y, m, d := t.Time.Date()
	out := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &out
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func parseList(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
