package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
)

func openTestDB(t *testing.T) *entsql.Driver {
	t.Helper()
	drv, _, err := Open(context.Background(), Config{Driver: "sqlite", DSN: "test-" + uuid.NewString()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { Close(drv, nil, nil) })
	require.NoError(t, Migrate(context.Background(), drv, nil))
	return drv
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func seed(t *testing.T, repo TransactionRepository) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []entity.Transaction{
		{DocumentNumber: "1234/2013", Buyers: []string{"Ramesh Kumar"}, Sellers: []string{"Lakshmi"},
			ExecutionDate: day(2013, 2, 7), ConsiderationValue: 150000, MarketValue: 200000,
			PropertyType: "Vacant Land", PlotNumber: "7A", SurveyNumbers: []string{"12/3"}},
		{DocumentNumber: "99/2014", Buyers: []string{"Senthil"}, Sellers: []string{"Ramesh Kumar"},
			ExecutionDate: day(2014, 6, 1), ConsiderationValue: 50000, MarketValue: 900000,
			PropertyType: "House", PlotNumber: "12", SurveyNumbers: []string{"44/1", "44/2"}},
		{DocumentNumber: "5/2015", Buyers: []string{"Priya"}, PropertyType: "Flat",
			ConsiderationValue: 10, MarketValue: 20},
	}
	for i := range rows {
		rows[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := repo.Create(context.Background(), &rows[i])
		require.NoError(t, err)
	}
}

func TestTransactionRepository_CreateRoundTrip(t *testing.T) {
	repo := NewTransactionRepository(openTestDB(t), nil)
	ctx := context.Background()

	in := &entity.Transaction{
		Profile:            "registry",
		SerialNumber:       "1",
		DocumentNumber:     "1234/2013",
		ExecutionDate:      day(2013, 2, 7),
		RegistrationDate:   day(2013, 2, 8),
		Nature:             "Sale deed",
		Buyers:             []string{"A", "B"},
		Sellers:            nil,
		ConsiderationValue: 150000,
		MarketValue:        12345.67,
		PRNumbers:          []string{"PR/1"},
		Village:            "Mylapore",
		Street:             "Kutchery Road",
		SurveyNumbers:      []string{"12/3"},
		PlotNumber:         "7",
		SourceFile:         "ec.pdf",
		OriginalData:       json.RawMessage(`{"docNo":"1234/2013"}`),
	}
	created, err := repo.Create(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.List(ctx, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	tx := got[0]
	assert.Equal(t, created.ID, tx.ID)
	assert.Equal(t, "1234/2013", tx.DocumentNumber)
	require.NotNil(t, tx.ExecutionDate)
	assert.Equal(t, *day(2013, 2, 7), *tx.ExecutionDate)
	assert.Nil(t, tx.PresentationDate)
	require.NotNil(t, tx.RegistrationDate)
	assert.Equal(t, []string{"A", "B"}, tx.Buyers)
	assert.Equal(t, []string{}, tx.Sellers)
	assert.InDelta(t, 12345.67, tx.MarketValue, 1e-9)
	assert.Equal(t, []string{"PR/1"}, tx.PRNumbers)
	assert.Equal(t, "ec.pdf", tx.SourceFile)
	assert.JSONEq(t, `{"docNo":"1234/2013"}`, string(tx.OriginalData))
}

func TestTransactionRepository_CreateRejectsMissingDocumentNumber(t *testing.T) {
	repo := NewTransactionRepository(openTestDB(t), nil)

	_, err := repo.Create(context.Background(), &entity.Transaction{DocumentNumber: "  "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	n, err := repo.Count(context.Background(), TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransactionRepository_Filters(t *testing.T) {
	repo := NewTransactionRepository(openTestDB(t), nil)
	seed(t, repo)
	ctx := context.Background()
	f64 := func(v float64) *float64 { return &v }

	cases := []struct {
		name   string
		filter TransactionFilter
		want   []string
	}{
		{"none", TransactionFilter{}, []string{"1234/2013", "99/2014", "5/2015"}},
		{"buyer fold", TransactionFilter{Buyer: "ramesh"}, []string{"1234/2013"}},
		{"seller", TransactionFilter{Seller: "RAMESH"}, []string{"99/2014"}},
		{"document number", TransactionFilter{DocumentNumber: "/2014"}, []string{"99/2014"}},
		{"property type", TransactionFilter{PropertyType: "land"}, []string{"1234/2013"}},
		{"house number", TransactionFilter{HouseNumber: "7a"}, []string{"1234/2013"}},
		{"survey", TransactionFilter{SurveyNumber: "44/2"}, []string{"99/2014"}},
		{"min value either column", TransactionFilter{MinValue: f64(800000)}, []string{"99/2014"}},
		{"value range", TransactionFilter{MinValue: f64(100000), MaxValue: f64(160000)}, []string{"1234/2013"}},
		{"max value", TransactionFilter{MaxValue: f64(100)}, []string{"5/2015"}},
		{"start date", TransactionFilter{StartDate: day(2014, 1, 1)}, []string{"99/2014"}},
		{"date range inclusive", TransactionFilter{StartDate: day(2013, 2, 7), EndDate: day(2014, 6, 1)}, []string{"1234/2013", "99/2014"}},
		{"combined", TransactionFilter{Buyer: "ramesh", StartDate: day(2014, 1, 1)}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.List(ctx, tc.filter)
			require.NoError(t, err)
			var docs []string
			for _, tx := range got {
				docs = append(docs, tx.DocumentNumber)
			}
			assert.Equal(t, tc.want, docs)

			n, err := repo.Count(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), n)
		})
	}
}

func TestTransactionRepository_QueryPages(t *testing.T) {
	repo := NewTransactionRepository(openTestDB(t), nil)
	seed(t, repo)
	ctx := context.Background()

	page, err := repo.Query(ctx, TransactionFilter{}, Page{Number: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "5/2015", page[0].DocumentNumber)

	p := Page{Number: 2, Size: 2}.Normalize()
	assert.Equal(t, Pagination{Total: 3, Page: 2, PageSize: 2, TotalPages: 2}, NewPagination(3, p))
	assert.Equal(t, Page{Number: 1, Size: MaxPageSize}, Page{Number: -1, Size: 1000}.Normalize())
	assert.Equal(t, Page{Number: 1, Size: DefaultPageSize}, Page{}.Normalize())
	assert.Equal(t, 0, NewPagination(0, Page{}.Normalize()).TotalPages)
}

func TestTransactionRepository_DeleteAll(t *testing.T) {
	repo := NewTransactionRepository(openTestDB(t), nil)
	seed(t, repo)
	ctx := context.Background()

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	count, err := repo.Count(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, repo.Ping(ctx))
}

func TestMigrateIsIdempotent(t *testing.T) {
	drv := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), drv, nil))
}

func TestDDLPerDialect(t *testing.T) {
	pg := ddl("postgres")
	lite := ddl("sqlite3")
	require.Len(t, pg, 4)
	require.Len(t, lite, 4)
	assert.Contains(t, pg[0], "id                  UUID PRIMARY KEY")
	assert.Contains(t, pg[0], "TIMESTAMPTZ")
	assert.Contains(t, lite[0], "id                  TEXT PRIMARY KEY")
}
