package repository

import (
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// TransactionFilter narrows transaction queries. Text filters are
// case-insensitive substring matches; zero values are ignored.
type TransactionFilter struct {
	Buyer          string
	Seller         string
	DocumentNumber string
	PropertyType   string
	HouseNumber    string // matched against the plot number
	SurveyNumber   string
	MinValue       *float64 // consideration or market value
	MaxValue       *float64
	StartDate      *time.Time // execution date, inclusive
	EndDate        *time.Time
}

// Page selects a 1-based page.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(total int, p Page) Pagination {
	return Pagination{
		Total:      total,
		Page:       p.Number,
		PageSize:   p.Size,
		TotalPages: (total + p.Size - 1) / p.Size,
	}
}

func (f TransactionFilter) predicates() []*entsql.Predicate {
	var ps []*entsql.Predicate
	for _, m := range []struct{ col, val string }{
		{"buyers", f.Buyer},
		{"sellers", f.Seller},
		{"document_number", f.DocumentNumber},
		{"property_type", f.PropertyType},
		{"plot_number", f.HouseNumber},
		{"survey_numbers", f.SurveyNumber},
	} {
		if m.val != "" {
			ps = append(ps, entsql.ContainsFold(m.col, m.val))
		}
	}

	if f.MinValue != nil || f.MaxValue != nil {
		ps = append(ps, entsql.Or(f.valueRange("consideration_value"), f.valueRange("market_value")))
	}
	if f.StartDate != nil {
		ps = append(ps, entsql.GTE("execution_date", *f.StartDate))
	}
	if f.EndDate != nil {
		ps = append(ps, entsql.LTE("execution_date", *f.EndDate))
	}
	return ps
}

func (f TransactionFilter) valueRange(col string) *entsql.Predicate {
	var ps []*entsql.Predicate
	if f.MinValue != nil {
		ps = append(ps, entsql.GTE(col, *f.MinValue))
	}
	if f.MaxValue != nil {
		ps = append(ps, entsql.LTE(col, *f.MaxValue))
	}
	return entsql.And(ps...)
}
