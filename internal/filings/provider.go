// Package filings reads the filing history owned by the wider product:
// aggregate statistics, company identity and the live recent-filings list.
package filings

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-intel/internal/model"
)

// ErrNotFound is returned by Identity for an unknown company id.
var ErrNotFound = eris.New("filings: company not found")

// Provider is the read-only filings collaborator.
type Provider interface {
	Stats(ctx context.Context, companyID string) (model.CompanyFilings, error)
	Identity(ctx context.Context, companyID string) (model.Identity, error)
	Recent(ctx context.Context, companyID string, limit int) ([]model.Filing, error)
}

// Trend thresholds on the ratio of the last 12 months to the prior 12.
const (
	growthRatio  = 1.25
	declineRatio = 0.75
)

// ClassifyTrend labels filing activity as of now.
func ClassifyTrend(s model.FilingStats, now time.Time) model.Trend {
	switch {
	case s.TotalFilings == 0:
		return model.TrendDormant
	case s.FirstFiling != nil && s.FirstFiling.After(now.AddDate(-1, 0, 0)):
		return model.TrendNew
	case s.Last12Months == 0:
		return model.TrendDormant
	case s.Prior12Months == 0:
		return model.TrendGrowing
	}

	ratio := float64(s.Last12Months) / float64(s.Prior12Months)
	switch {
	case ratio >= growthRatio:
		return model.TrendGrowing
	case ratio <= declineRatio:
		return model.TrendDeclining
	default:
		return model.TrendSteady
	}
}

// IndustryHint returns the category with the most filings. Ties break
// alphabetically so the hint is stable across runs.
func IndustryHint(categories map[string]int) string {
	type kv struct {
		name  string
		count int
	}
	var all []kv
	for name, n := range categories {
		if name == "" || n <= 0 {
			continue
		}
		all = append(all, kv{name, n})
	}
	if len(all) == 0 {
		return ""
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].name < all[j].name
	})
	return all[0].name
}
