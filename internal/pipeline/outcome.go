package pipeline

import "github.com/sells-group/company-intel/internal/model"

// Outcome is the result of one Enhance call: exactly one of CacheHit,
// PaymentRequired or Completed.
type Outcome interface {
	outcome()
}

// CacheHit is returned when a fresh record exists. Nothing was charged and
// no external service was called.
type CacheHit struct {
	Tearsheet model.Tearsheet
}

// PaymentRequired is returned when the user has no credit left. Credits is
// the current balance.
type PaymentRequired struct {
	Credits int
}

// Completed is returned after a full run. Charged and Persisted are false
// for a dead end; Persisted is false with a non-nil error from Enhance when
// the record could not be saved.
type Completed struct {
	Tearsheet        model.Tearsheet
	Charged          bool
	Persisted        bool
	CreditsRemaining int
}

func (CacheHit) outcome()        {}
func (PaymentRequired) outcome() {}
func (Completed) outcome()       {}

// Status values for StatusResult.
const (
	StatusComplete = "complete"
	StatusNotFound = "not_found"
)

// StatusResult is the read-only view of a company's cached record.
type StatusResult struct {
	Status    string           `json:"status"`
	Tearsheet *model.Tearsheet `json:"tearsheet,omitempty"`
}
