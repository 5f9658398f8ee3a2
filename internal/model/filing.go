package model

import "time"

// Trend classifies recent filing activity.
type Trend string

const (
	TrendGrowing   Trend = "growing"
	TrendSteady    Trend = "steady"
	TrendDeclining Trend = "declining"
	TrendDormant   Trend = "dormant"
	TrendNew       Trend = "new"
)

// FilingStats aggregates a company's filing history. Computed by the
// filings provider and consumed read-only.
type FilingStats struct {
	TotalFilings  int        `json:"total_filings"`
	FirstFiling   *time.Time `json:"first_filing"`
	LastFiling    *time.Time `json:"last_filing"`
	Last12Months  int        `json:"last_12_months"`
	LastMonth     int        `json:"last_month"`
	Prior12Months int        `json:"prior_12_months"`
	Trend         Trend      `json:"trend"`
}

// BrandCount is a brand name with the number of filings under it.
type BrandCount struct {
	Name        string `json:"name"`
	FilingCount int    `json:"filing_count"`
}

// CompanyFilings is everything the filings provider knows about a company.
type CompanyFilings struct {
	Stats        FilingStats    `json:"stats"`
	Brands       []BrandCount   `json:"brands"`
	Categories   map[string]int `json:"categories"`
	States       []string       `json:"states"`
	IndustryHint string         `json:"industry_hint"`
}

// Filing is one row of the recent-filings list.
type Filing struct {
	ID       string    `json:"id"`
	Brand    string    `json:"brand"`
	Category string    `json:"category"`
	State    string    `json:"state"`
	FiledAt  time.Time `json:"filed_at"`
}

// Identity is the canonical name and comma-joined legal aliases for a
// company id.
type Identity struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Aliases   string `json:"aliases"`
}

// CreditAccount is a user's pay-per-use balance.
type CreditAccount struct {
	UserID    string    `json:"user_id"`
	Balance   int       `json:"balance"`
	Tier      string    `json:"tier"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LegalName returns the canonical name joined with its aliases in the
// comma-separated form ParseAliases expects.
func (i Identity) LegalName() string {
	if i.Aliases == "" {
		return i.Name
	}
	if i.Name == "" {
		return i.Aliases
	}
	return i.Name + ", " + i.Aliases
}
