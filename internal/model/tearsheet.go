package model

import "time"

// FreshnessWindow is how long a persisted enhancement record is served from
// cache before a new run is allowed.
const FreshnessWindow = 90 * 24 * time.Hour

// Confidence is a coarse trust label.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps free-form model output onto a Confidence, defaulting
// to low.
func ParseConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium:
		return Confidence(s)
	default:
		return ConfidenceLow
	}
}

// Website is a discovered official site. Confidence is never low.
type Website struct {
	URL        string     `json:"url"`
	Confidence Confidence `json:"confidence"`
}

// Distribution describes where a company's products are filed.
type Distribution struct {
	States []string `json:"states"`
}

// NewsItem is a validated article about the company. Date is YYYY-MM-DD or
// nil when it could not be determined.
type NewsItem struct {
	Title  string  `json:"title"`
	URL    string  `json:"url"`
	Source string  `json:"source"`
	Date   *string `json:"date"`
}

// Social holds profile links found during discovery.
type Social struct {
	Facebook  *string `json:"facebook"`
	Instagram *string `json:"instagram"`
	YouTube   *string `json:"youtube"`
}

// IsEmpty reports whether no profile was found.
func (s *Social) IsEmpty() bool {
	return s == nil || (s.Facebook == nil && s.Instagram == nil && s.YouTube == nil)
}

// EnhancementRecord is the persisted enrichment artifact, one per company.
// It is written as a full replace and never patched.
type EnhancementRecord struct {
	CompanyID    string         `json:"company_id"`
	CompanyName  string         `json:"company_name"`
	Website      *Website       `json:"website"`
	FilingStats  FilingStats    `json:"filing_stats"`
	Distribution Distribution   `json:"distribution"`
	Brands       []BrandCount   `json:"brands"`
	Categories   map[string]int `json:"categories"`
	Summary      *string        `json:"summary"`
	News         []NewsItem     `json:"news"`
	Social       *Social        `json:"social"`
	EnhancedAt   time.Time      `json:"enhanced_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

// Fresh reports whether the record may be served as a cache hit at now.
func (r *EnhancementRecord) Fresh(now time.Time) bool {
	return r != nil && now.Before(r.ExpiresAt)
}

// Stamp sets EnhancedAt and the derived ExpiresAt. Times are truncated to
// microseconds so they survive a database round trip unchanged.
func (r *EnhancementRecord) Stamp(enhancedAt time.Time) {
	r.EnhancedAt = enhancedAt.UTC().Truncate(time.Microsecond)
	r.ExpiresAt = r.EnhancedAt.Add(FreshnessWindow)
}

// HasSummary reports whether a non-empty summary is present.
func (r *EnhancementRecord) HasSummary() bool {
	return r.Summary != nil && *r.Summary != ""
}

// Tearsheet is the response shape: the record plus the live recent-filings
// list, which is never cached.
type Tearsheet struct {
	EnhancementRecord
	RecentFilings []Filing `json:"recent_filings"`
}
