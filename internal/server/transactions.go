package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/constants"
	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/repository"
)

const maxFilterLength = 200

type transactionPage struct {
	Transactions []*entity.Transaction `json:"transactions"`
	Pagination   repository.Pagination `json:"pagination"`
}

// listTransactions handles GET /transactions.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	f, page, err := parseFilter(r.URL.Query())
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	total, err := s.repo.Count(r.Context(), f)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	txs, err := s.repo.Query(r.Context(), f, page)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeOK(w, http.StatusOK,
		fmt.Sprintf("found %d transactions", total),
		transactionPage{Transactions: nonNil(txs), Pagination: repository.NewPagination(total, page)})
}

// deleteTransactions handles DELETE /transactions.
func (s *Server) deleteTransactions(w http.ResponseWriter, r *http.Request) {
	n, err := s.repo.DeleteAll(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.log(r).Info("server.transactions.deleted", zap.Int64("count", n))
	writeOK(w, http.StatusOK, fmt.Sprintf("deleted %d transactions", n), map[string]int64{"count": n})
}

// exportTransactions handles GET /transactions/export.
func (s *Server) exportTransactions(w http.ResponseWriter, r *http.Request) {
	f, _, err := parseFilter(r.URL.Query())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	xlsx, err := s.exporter.ExportTransactionsXLSX(r.Context(), f)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	name := fmt.Sprintf("transactions-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", constants.MediaTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

// parseFilter reads the shared query parameters of list and export.
func parseFilter(q url.Values) (repository.TransactionFilter, repository.Page, error) {
	v := common.NewValidator()
	text := func(name string) string {
		s := strings.TrimSpace(q.Get(name))
		v.Field(name, s, common.MaxLength(maxFilterLength))
		return s
	}

	f := repository.TransactionFilter{
		Buyer:          text("buyer"),
		Seller:         text("seller"),
		DocumentNumber: text("documentNumber"),
		PropertyType:   text("propertyType"),
		HouseNumber:    text("houseNumber"),
		SurveyNumber:   text("surveyNumber"),
		MinValue:       v.Float("minValue", q.Get("minValue"), common.Min(0)),
		MaxValue:       v.Float("maxValue", q.Get("maxValue"), common.Min(0)),
		StartDate:      v.Date("startDate", q.Get("startDate")),
		EndDate:        v.Date("endDate", q.Get("endDate")),
	}
	page := repository.Page{
		Number: v.Int("page", q.Get("page"), 1, common.Min(1)),
		Size:   v.Int("limit", q.Get("limit"), repository.DefaultPageSize, common.Min(1), common.Max(repository.MaxPageSize)),
	}

	if f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
		v.Field("minValue", *f.MinValue, common.Max(*f.MaxValue))
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		v.Field("startDate", q.Get("startDate"), notAfter(q.Get("endDate")))
	}
	if err := v.Err(); err != nil {
		return repository.TransactionFilter{}, repository.Page{}, err
	}
	return f, page.Normalize(), nil
}

func notAfter(end string) common.ValidationRule {
	return func(fieldName string, value any) *common.ValidationError {
		return &common.ValidationError{Field: fieldName, Value: value, Message: "must not be after endDate " + end}
	}
}
