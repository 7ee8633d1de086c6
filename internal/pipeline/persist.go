package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/metrics"
	"github.com/joseph-ayodele/deeds-tracker/internal/repository"
)

// Persisted is what the persister wrote. Transactions keep input order.
type Persisted struct {
	Transactions []*entity.Transaction
	Skipped      int
	Failed       int
}

// Persister writes records one by one so a bad record never blocks the rest.
type Persister struct {
	repo   repository.TransactionRepository
	logger *zap.Logger
}

func NewPersister(repo repository.TransactionRepository, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{repo: repo, logger: logger}
}

// Persist skips records without a document number and logs and counts write
// failures. Indexes in the returned faults refer to positions in txs.
func (p *Persister) Persist(ctx context.Context, txs []*entity.Transaction) Result[Persisted] {
	res := OK(Persisted{Transactions: []*entity.Transaction{}})
	for i, tx := range txs {
		if tx == nil || strings.TrimSpace(tx.DocumentNumber) == "" {
			res.Value.Skipped++
			metrics.RecordsTotal.WithLabelValues("skipped").Inc()
			p.logger.Debug("persist.skipped", zap.Int("record", i))
			continue
		}
		saved, err := p.repo.Create(ctx, tx)
		if err != nil {
			res.Value.Failed++
			metrics.RecordsTotal.WithLabelValues("failed").Inc()
			p.logger.Warn("persist.failed",
				zap.Int("record", i),
				zap.String("document_number", tx.DocumentNumber),
				zap.Error(err))
			res.Fail(StagePersist, -1, i, err)
			continue
		}
		metrics.RecordsTotal.WithLabelValues("persisted").Inc()
		res.Value.Transactions = append(res.Value.Transactions, saved)
	}
	return res
}
