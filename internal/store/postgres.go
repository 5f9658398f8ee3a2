package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/company-intel/internal/db"
	"github.com/sells-group/company-intel/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres and returns a store.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enhancements (
	cache_key    TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL DEFAULT '',
	company_name TEXT NOT NULL,
	record       JSONB NOT NULL,
	enhanced_at  TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_enhancements_company_id ON enhancements(company_id);
CREATE INDEX IF NOT EXISTS idx_enhancements_expires_at ON enhancements(expires_at);

CREATE TABLE IF NOT EXISTS credit_accounts (
	user_id    TEXT PRIMARY KEY,
	balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
	tier       TEXT NOT NULL DEFAULT 'free',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credit_ledger (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	delta      INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_credit_ledger_user_id ON credit_ledger(user_id, created_at DESC);
`

var enhancementColumns = []string{"cache_key", "company_id", "company_name", "record", "enhanced_at", "expires_at"}

var upsertEnhancementSQL = db.UpsertSQL("enhancements", enhancementColumns, []string{"cache_key"})

const (
	getEnhancementSQL = `SELECT record, enhanced_at, expires_at FROM enhancements WHERE cache_key = $1`
	getBalanceSQL     = `SELECT balance FROM credit_accounts WHERE user_id = $1`
	getAccountSQL     = `SELECT user_id, balance, tier, updated_at FROM credit_accounts WHERE user_id = $1`
	debitSQL          = `UPDATE credit_accounts SET balance = balance - 1, updated_at = now() WHERE user_id = $1 AND balance > 0 RETURNING balance`
	grantSQL          = `INSERT INTO credit_accounts (user_id, balance, tier, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE SET balance = credit_accounts.balance + EXCLUDED.balance, updated_at = now()
RETURNING balance`
	insertLedgerSQL = `INSERT INTO credit_ledger (id, user_id, delta, reason) VALUES ($1, $2, $3, $4)`
)

// Migrate creates the enhancement and credit tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// GetRecord implements Records.
func (s *PostgresStore) GetRecord(ctx context.Context, key string) (*model.EnhancementRecord, error) {
	var (
		raw        []byte
		enhancedAt time.Time
		expiresAt  time.Time
	)
	err := s.pool.QueryRow(ctx, getEnhancementSQL, key).Scan(&raw, &enhancedAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", key)
	}

	var rec model.EnhancementRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode record %s", key)
	}
	rec.EnhancedAt = enhancedAt.UTC()
	rec.ExpiresAt = expiresAt.UTC()
	return &rec, nil
}

// PutRecord implements Records.
func (s *PostgresStore) PutRecord(ctx context.Context, key string, rec *model.EnhancementRecord) error {
	stampForWrite(rec)
	raw, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: encode record")
	}
	_, err = s.pool.Exec(ctx, upsertEnhancementSQL,
		key, rec.CompanyID, rec.CompanyName, raw, rec.EnhancedAt, rec.ExpiresAt)
	return eris.Wrapf(err, "postgres: put record %s", key)
}

// Balance implements Credits.
func (s *PostgresStore) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.pool.QueryRow(ctx, getBalanceSQL, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: balance for %s", userID)
	}
	return balance, nil
}

// Account implements Credits.
func (s *PostgresStore) Account(ctx context.Context, userID string) (model.CreditAccount, error) {
	acct := model.CreditAccount{UserID: userID}
	err := s.pool.QueryRow(ctx, getAccountSQL, userID).Scan(&acct.UserID, &acct.Balance, &acct.Tier, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CreditAccount{UserID: userID}, nil
	}
	if err != nil {
		return model.CreditAccount{}, eris.Wrapf(err, "postgres: account for %s", userID)
	}
	return acct, nil
}

// Debit implements Credits. The conditional decrement makes concurrent
// debits safe without an explicit row lock.
func (s *PostgresStore) Debit(ctx context.Context, userID, reason string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: debit: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var balance int
	err = tx.QueryRow(ctx, debitSQL, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: debit %s", userID)
	}
	if _, err := tx.Exec(ctx, insertLedgerSQL, uuid.NewString(), userID, -1, reason); err != nil {
		return 0, eris.Wrap(err, "postgres: debit: write ledger")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: debit: commit tx")
	}
	return balance, nil
}

// Grant implements Credits.
func (s *PostgresStore) Grant(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if err := validateGrant(userID, amount); err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: grant: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var balance int
	if err := tx.QueryRow(ctx, grantSQL, userID, amount, DefaultTier).Scan(&balance); err != nil {
		return 0, eris.Wrapf(err, "postgres: grant %s", userID)
	}
	if _, err := tx.Exec(ctx, insertLedgerSQL, uuid.NewString(), userID, amount, reason); err != nil {
		return 0, eris.Wrap(err, "postgres: grant: write ledger")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: grant: commit tx")
	}
	return balance, nil
}

// stampForWrite recomputes ExpiresAt from EnhancedAt, defaulting
// EnhancedAt to now.
func stampForWrite(rec *model.EnhancementRecord) {
	at := rec.EnhancedAt
	if at.IsZero() {
		at = time.Now()
	}
	rec.Stamp(at)
}
