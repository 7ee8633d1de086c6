package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/repository"
)

const sheet = "Transactions"

type column struct {
	header string
	width  float64
	value  func(tx *entity.Transaction) any
}

var columns = []column{
	{"Sr. No", 8, func(tx *entity.Transaction) any { return tx.SerialNumber }},
	{"Document No", 16, func(tx *entity.Transaction) any { return tx.DocumentNumber }},
	{"Execution Date", 14, func(tx *entity.Transaction) any { return formatDate(tx.ExecutionDate) }},
	{"Presentation Date", 14, func(tx *entity.Transaction) any { return formatDate(tx.PresentationDate) }},
	{"Registration Date", 14, func(tx *entity.Transaction) any { return formatDate(tx.RegistrationDate) }},
	{"Nature", 22, func(tx *entity.Transaction) any { return tx.Nature }},
	{"Buyers", 32, func(tx *entity.Transaction) any { return strings.Join(tx.Buyers, "; ") }},
	{"Sellers", 32, func(tx *entity.Transaction) any { return strings.Join(tx.Sellers, "; ") }},
	{"Vol/Page", 12, func(tx *entity.Transaction) any { return tx.VolumePage }},
	{"Consideration Value", 16, func(tx *entity.Transaction) any { return tx.ConsiderationValue }},
	{"Market Value", 16, func(tx *entity.Transaction) any { return tx.MarketValue }},
	{"PR Numbers", 16, func(tx *entity.Transaction) any { return strings.Join(tx.PRNumbers, "; ") }},
	{"Property Type", 18, func(tx *entity.Transaction) any { return tx.PropertyType }},
	{"Property Extent", 18, func(tx *entity.Transaction) any { return tx.PropertyExtent }},
	{"Village", 18, func(tx *entity.Transaction) any { return tx.Village }},
	{"Street", 24, func(tx *entity.Transaction) any { return tx.Street }},
	{"Survey Numbers", 18, func(tx *entity.Transaction) any { return strings.Join(tx.SurveyNumbers, "; ") }},
	{"Plot No", 10, func(tx *entity.Transaction) any { return tx.PlotNumber }},
	{"Document Remarks", 40, func(tx *entity.Transaction) any { return truncate(tx.DocumentRemarks, 500) }},
	{"Schedule Remarks", 40, func(tx *entity.Transaction) any { return truncate(tx.ScheduleRemarks, 500) }},
	{"Source File", 28, func(tx *entity.Transaction) any { return tx.SourceFile }},
}

// Service produces XLSX workbooks of stored transactions.
type Service struct {
	repo   repository.TransactionRepository
	logger *zap.Logger
}

func NewService(repo repository.TransactionRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportTransactionsXLSX returns a workbook of every transaction matching f.
func (s *Service) ExportTransactionsXLSX(ctx context.Context, f repository.TransactionFilter) ([]byte, error) {
	start := time.Now()
	txs, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	out, err := Workbook(txs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		zap.Int("rows", len(txs)),
		zap.Int("bytes", len(out)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return out, nil
}

// Workbook renders txs into a single-sheet XLSX file.
func Workbook(txs []*entity.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, c.header)
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, name, name, c.width)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	for r, tx := range txs {
		for i, c := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellValue(sheet, cell, c.value(tx)); err != nil {
				return nil, fmt.Errorf("xlsx cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
