package filings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-intel/internal/model"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newMockProvider(t *testing.T) (*PostgresProvider, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	p := NewPostgresProvider(mock, Tables{Filings: "ttb.label_filings"}, WithClock(func() time.Time { return fixedNow }))
	return p, mock
}

func TestPostgresProvider_Stats(t *testing.T) {
	p, mock := newMockProvider(t)

	first := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT count\(\*\), min\(filed_at\), max\(filed_at\)`).
		WithArgs("co-1", fixedNow.AddDate(-1, 0, 0), fixedNow.AddDate(0, -1, 0), fixedNow.AddDate(-2, 0, 0)).
		WillReturnRows(mock.NewRows([]string{"count", "min", "max", "l12", "l1", "p12"}).
			AddRow(40, &first, &last, 15, 2, 10))
	mock.ExpectQuery(`SELECT brand, count\(\*\) AS n FROM "ttb"."label_filings"`).
		WithArgs("co-1").
		WillReturnRows(mock.NewRows([]string{"brand", "n"}).
			AddRow("Northland IPA", 20).
			AddRow("Pearlhead Lager", 8))
	mock.ExpectQuery(`SELECT category, count\(\*\) FROM "ttb"."label_filings"`).
		WithArgs("co-1").
		WillReturnRows(mock.NewRows([]string{"category", "count"}).
			AddRow("beer", 35).
			AddRow("cider", 5))
	mock.ExpectQuery(`SELECT DISTINCT upper\(state\)`).
		WithArgs("co-1").
		WillReturnRows(mock.NewRows([]string{"st"}).AddRow("MN").AddRow("WI"))

	got, err := p.Stats(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Equal(t, 40, got.Stats.TotalFilings)
	assert.Equal(t, first, *got.Stats.FirstFiling)
	assert.Equal(t, model.TrendGrowing, got.Stats.Trend)
	assert.Equal(t, []model.BrandCount{{Name: "Northland IPA", FilingCount: 20}, {Name: "Pearlhead Lager", FilingCount: 8}}, got.Brands)
	assert.Equal(t, map[string]int{"beer": 35, "cider": 5}, got.Categories)
	assert.Equal(t, []string{"MN", "WI"}, got.States)
	assert.Equal(t, "beer", got.IndustryHint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_Stats_QueryError(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectQuery(`SELECT count`).
		WillReturnError(errors.New("connection refused"))

	_, err := p.Stats(context.Background(), "co-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filings: stats for co-1")
}

func TestPostgresProvider_Identity(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectQuery(`SELECT id, name, COALESCE\(aliases, ''\) FROM "companies" WHERE id = \$1`).
		WithArgs("co-1").
		WillReturnRows(mock.NewRows([]string{"id", "name", "aliases"}).
			AddRow("co-1", "Northland Brewing LLC", "Pearlhead Holdings"))

	id, err := p.Identity(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, model.Identity{CompanyID: "co-1", Name: "Northland Brewing LLC", Aliases: "Pearlhead Holdings"}, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_Identity_NotFound(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectQuery(`SELECT id, name`).
		WithArgs("co-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := p.Identity(context.Background(), "co-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresProvider_Recent(t *testing.T) {
	p, mock := newMockProvider(t)

	filed := time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, .* ORDER BY filed_at DESC LIMIT \$2`).
		WithArgs("co-1", 10).
		WillReturnRows(mock.NewRows([]string{"id", "brand", "category", "state", "filed_at"}).
			AddRow("f-9", "Northland IPA", "beer", "MN", filed))

	got, err := p.Recent(context.Background(), "co-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.Filing{ID: "f-9", Brand: "Northland IPA", Category: "beer", State: "MN", FiledAt: filed}, got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_Recent_ZeroLimit(t *testing.T) {
	p, mock := newMockProvider(t)

	got, err := p.Recent(context.Background(), "co-1", 0)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
