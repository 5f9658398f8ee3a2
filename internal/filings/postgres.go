package filings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/db"
	"github.com/sells-group/company-intel/internal/model"
)

// maxBrands caps the brand list carried into a record.
const maxBrands = 25

// Tables names the filings and companies tables, optionally
// schema-qualified.
type Tables struct {
	Filings   string
	Companies string
}

// PostgresProvider implements Provider over the product's filings tables.
type PostgresProvider struct {
	pool db.Pool
	now  func() time.Time

	statsSQL      string
	brandsSQL     string
	categoriesSQL string
	statesSQL     string
	identitySQL   string
	recentSQL     string
}

// Option configures a PostgresProvider.
type Option func(*PostgresProvider)

// WithClock overrides the clock used for activity windows.
func WithClock(now func() time.Time) Option {
	return func(p *PostgresProvider) { p.now = now }
}

// NewPostgresProvider creates a provider. Empty table names default to
// "filings" and "companies".
func NewPostgresProvider(pool db.Pool, tables Tables, opts ...Option) *PostgresProvider {
	if tables.Filings == "" {
		tables.Filings = "filings"
	}
	if tables.Companies == "" {
		tables.Companies = "companies"
	}
	f := db.SanitizeTable(tables.Filings)
	c := db.SanitizeTable(tables.Companies)

	p := &PostgresProvider{
		pool: pool,
		now:  time.Now,
		statsSQL: fmt.Sprintf(`SELECT count(*), min(filed_at), max(filed_at),
	count(*) FILTER (WHERE filed_at >= $2),
	count(*) FILTER (WHERE filed_at >= $3),
	count(*) FILTER (WHERE filed_at >= $4 AND filed_at < $2)
FROM %s WHERE company_id = $1`, f),
		brandsSQL: fmt.Sprintf(`SELECT brand, count(*) AS n FROM %s WHERE company_id = $1 AND brand <> '' GROUP BY brand ORDER BY n DESC, brand LIMIT %d`, f, maxBrands),
		categoriesSQL: fmt.Sprintf(`SELECT category, count(*) FROM %s WHERE company_id = $1 AND category <> '' GROUP BY category`, f),
		statesSQL:     fmt.Sprintf(`SELECT DISTINCT upper(state) AS st FROM %s WHERE company_id = $1 AND length(state) = 2 ORDER BY st`, f),
		identitySQL:   fmt.Sprintf(`SELECT id, name, COALESCE(aliases, '') FROM %s WHERE id = $1`, c),
		recentSQL:     fmt.Sprintf(`SELECT id, COALESCE(brand, ''), COALESCE(category, ''), COALESCE(state, ''), filed_at FROM %s WHERE company_id = $1 ORDER BY filed_at DESC LIMIT $2`, f),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Stats implements Provider.
func (p *PostgresProvider) Stats(ctx context.Context, companyID string) (model.CompanyFilings, error) {
	now := p.now().UTC()
	yearAgo := now.AddDate(-1, 0, 0)
	monthAgo := now.AddDate(0, -1, 0)
	twoYearsAgo := now.AddDate(-2, 0, 0)

	var out model.CompanyFilings
	s := &out.Stats
	err := p.pool.QueryRow(ctx, p.statsSQL, companyID, yearAgo, monthAgo, twoYearsAgo).
		Scan(&s.TotalFilings, &s.FirstFiling, &s.LastFiling, &s.Last12Months, &s.LastMonth, &s.Prior12Months)
	if err != nil {
		return model.CompanyFilings{}, eris.Wrapf(err, "filings: stats for %s", companyID)
	}
	s.Trend = ClassifyTrend(*s, now)

	if out.Brands, err = p.brands(ctx, companyID); err != nil {
		return model.CompanyFilings{}, err
	}
	if out.Categories, err = p.categories(ctx, companyID); err != nil {
		return model.CompanyFilings{}, err
	}
	if out.States, err = p.states(ctx, companyID); err != nil {
		return model.CompanyFilings{}, err
	}
	out.IndustryHint = IndustryHint(out.Categories)

	zap.L().Debug("filings: stats loaded",
		zap.String("company_id", companyID),
		zap.Int("total", s.TotalFilings),
		zap.String("trend", string(s.Trend)),
	)
	return out, nil
}

func (p *PostgresProvider) brands(ctx context.Context, companyID string) ([]model.BrandCount, error) {
	rows, err := p.pool.Query(ctx, p.brandsSQL, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "filings: brands for %s", companyID)
	}
	defer rows.Close()

	var out []model.BrandCount
	for rows.Next() {
		var b model.BrandCount
		if err := rows.Scan(&b.Name, &b.FilingCount); err != nil {
			return nil, eris.Wrap(err, "filings: scan brand")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "filings: iterate brands")
}

func (p *PostgresProvider) categories(ctx context.Context, companyID string) (map[string]int, error) {
	rows, err := p.pool.Query(ctx, p.categoriesSQL, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "filings: categories for %s", companyID)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, eris.Wrap(err, "filings: scan category")
		}
		out[name] = n
	}
	return out, eris.Wrap(rows.Err(), "filings: iterate categories")
}

func (p *PostgresProvider) states(ctx context.Context, companyID string) ([]string, error) {
	rows, err := p.pool.Query(ctx, p.statesSQL, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "filings: states for %s", companyID)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, eris.Wrap(err, "filings: scan state")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "filings: iterate states")
}

// Identity implements Provider.
func (p *PostgresProvider) Identity(ctx context.Context, companyID string) (model.Identity, error) {
	var id model.Identity
	err := p.pool.QueryRow(ctx, p.identitySQL, companyID).Scan(&id.CompanyID, &id.Name, &id.Aliases)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Identity{}, ErrNotFound
	}
	if err != nil {
		return model.Identity{}, eris.Wrapf(err, "filings: identity for %s", companyID)
	}
	return id, nil
}

// Recent implements Provider.
func (p *PostgresProvider) Recent(ctx context.Context, companyID string, limit int) ([]model.Filing, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, p.recentSQL, companyID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "filings: recent for %s", companyID)
	}
	defer rows.Close()

	var out []model.Filing
	for rows.Next() {
		var f model.Filing
		if err := rows.Scan(&f.ID, &f.Brand, &f.Category, &f.State, &f.FiledAt); err != nil {
			return nil, eris.Wrap(err, "filings: scan recent")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "filings: iterate recent")
}
