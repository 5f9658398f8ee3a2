package filings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/company-intel/internal/model"
)

func TestClassifyTrend(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(-5, 0, 0)
	recent := now.AddDate(0, -3, 0)

	tests := []struct {
		name  string
		stats model.FilingStats
		want  model.Trend
	}{
		{"no filings", model.FilingStats{}, model.TrendDormant},
		{"first filing this year", model.FilingStats{TotalFilings: 4, FirstFiling: &recent, Last12Months: 4}, model.TrendNew},
		{"nothing lately", model.FilingStats{TotalFilings: 40, FirstFiling: &old, Prior12Months: 10}, model.TrendDormant},
		{"restarted", model.FilingStats{TotalFilings: 40, FirstFiling: &old, Last12Months: 3}, model.TrendGrowing},
		{"growing", model.FilingStats{TotalFilings: 40, FirstFiling: &old, Last12Months: 15, Prior12Months: 10}, model.TrendGrowing},
		{"steady", model.FilingStats{TotalFilings: 40, FirstFiling: &old, Last12Months: 10, Prior12Months: 11}, model.TrendSteady},
		{"declining", model.FilingStats{TotalFilings: 40, FirstFiling: &old, Last12Months: 5, Prior12Months: 10}, model.TrendDeclining},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTrend(tt.stats, now))
		})
	}
}

func TestIndustryHint(t *testing.T) {
	assert.Equal(t, "", IndustryHint(nil))
	assert.Equal(t, "beer", IndustryHint(map[string]int{"beer": 12, "cider": 3}))
	assert.Equal(t, "cider", IndustryHint(map[string]int{"wine": 5, "cider": 5, "": 9}))
}

func TestIdentity_LegalName(t *testing.T) {
	assert.Equal(t, "Northland Brewing LLC, Pearlhead Holdings",
		model.Identity{Name: "Northland Brewing LLC", Aliases: "Pearlhead Holdings"}.LegalName())
	assert.Equal(t, "Acme", model.Identity{Name: "Acme"}.LegalName())
}
