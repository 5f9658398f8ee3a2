// Package store persists enhancement records and the pay-per-use credit
// ledger. Postgres is the production backend; SQLite serves local runs.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-intel/internal/model"
)

// ErrInsufficientCredits is returned by Debit when the balance is zero or
// the account does not exist.
var ErrInsufficientCredits = eris.New("store: insufficient credits")

// Records is the enhancement cache. Writes are full replaces keyed by
// CompanyRef.CacheKey; records are never patched or deleted.
type Records interface {
	// GetRecord returns the record for key, or nil if none exists. Stale
	// records are returned as-is; freshness is the caller's concern.
	GetRecord(ctx context.Context, key string) (*model.EnhancementRecord, error)
	// PutRecord replaces the record for key. ExpiresAt is recomputed from
	// EnhancedAt at write time.
	PutRecord(ctx context.Context, key string, rec *model.EnhancementRecord) error
}

// Credits is the per-user credit ledger.
type Credits interface {
	// Balance returns the user's balance; unknown users have zero.
	Balance(ctx context.Context, userID string) (int, error)
	// Account returns the full account row; unknown users get a zero account.
	Account(ctx context.Context, userID string) (model.CreditAccount, error)
	// Debit atomically removes one credit and returns the new balance.
	Debit(ctx context.Context, userID, reason string) (int, error)
	// Grant adds amount credits, creating the account if needed.
	Grant(ctx context.Context, userID string, amount int, reason string) (int, error)
}

// Store is the full persistence surface.
type Store interface {
	Records
	Credits

	Migrate(ctx context.Context) error
	Close() error
}

// DefaultTier is assigned to accounts created by a grant.
const DefaultTier = "free"

func validateGrant(userID string, amount int) error {
	if userID == "" {
		return eris.New("store: grant: user id is required")
	}
	if amount <= 0 {
		return eris.Errorf("store: grant: amount must be positive, got %d", amount)
	}
	return nil
}
