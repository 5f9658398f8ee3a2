package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/company-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// runs; production uses PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enhancements (
	cache_key    TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL DEFAULT '',
	company_name TEXT NOT NULL,
	record       TEXT NOT NULL,
	enhanced_at  TEXT NOT NULL,
	expires_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_enhancements_company_id ON enhancements(company_id);

CREATE TABLE IF NOT EXISTS credit_accounts (
	user_id    TEXT PRIMARY KEY,
	balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
	tier       TEXT NOT NULL DEFAULT 'free',
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS credit_ledger (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	delta      INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_credit_ledger_user_id ON credit_ledger(user_id);
`

// Migrate creates the enhancement and credit tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	return t.UTC(), err
}

// GetRecord implements Records.
func (s *SQLiteStore) GetRecord(ctx context.Context, key string) (*model.EnhancementRecord, error) {
	var raw, enhancedAt, expiresAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT record, enhanced_at, expires_at FROM enhancements WHERE cache_key = ?`, key,
	).Scan(&raw, &enhancedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", key)
	}

	var rec model.EnhancementRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode record %s", key)
	}
	if rec.EnhancedAt, err = parseTime(enhancedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse enhanced_at for %s", key)
	}
	if rec.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse expires_at for %s", key)
	}
	return &rec, nil
}

// PutRecord implements Records.
func (s *SQLiteStore) PutRecord(ctx context.Context, key string, rec *model.EnhancementRecord) error {
	stampForWrite(rec)
	raw, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode record")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enhancements (cache_key, company_id, company_name, record, enhanced_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			company_id = excluded.company_id,
			company_name = excluded.company_name,
			record = excluded.record,
			enhanced_at = excluded.enhanced_at,
			expires_at = excluded.expires_at`,
		key, rec.CompanyID, rec.CompanyName, string(raw), formatTime(rec.EnhancedAt), formatTime(rec.ExpiresAt))
	return eris.Wrapf(err, "sqlite: put record %s", key)
}

// Balance implements Credits.
func (s *SQLiteStore) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM credit_accounts WHERE user_id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: balance for %s", userID)
	}
	return balance, nil
}

// Account implements Credits.
func (s *SQLiteStore) Account(ctx context.Context, userID string) (model.CreditAccount, error) {
	var (
		acct      model.CreditAccount
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, balance, tier, updated_at FROM credit_accounts WHERE user_id = ?`, userID,
	).Scan(&acct.UserID, &acct.Balance, &acct.Tier, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CreditAccount{UserID: userID}, nil
	}
	if err != nil {
		return model.CreditAccount{}, eris.Wrapf(err, "sqlite: account for %s", userID)
	}
	if acct.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.CreditAccount{}, eris.Wrapf(err, "sqlite: parse updated_at for %s", userID)
	}
	return acct, nil
}

// Debit implements Credits.
func (s *SQLiteStore) Debit(ctx context.Context, userID, reason string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: debit: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := formatTime(time.Now())
	var balance int
	err = tx.QueryRowContext(ctx,
		`UPDATE credit_accounts SET balance = balance - 1, updated_at = ? WHERE user_id = ? AND balance > 0 RETURNING balance`,
		now, userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: debit %s", userID)
	}
	if err := s.writeLedger(ctx, tx, userID, -1, reason, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: debit: commit tx")
	}
	return balance, nil
}

// Grant implements Credits.
func (s *SQLiteStore) Grant(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if err := validateGrant(userID, amount); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: grant: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := formatTime(time.Now())
	var balance int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO credit_accounts (user_id, balance, tier, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = credit_accounts.balance + excluded.balance,
			updated_at = excluded.updated_at
		RETURNING balance`,
		userID, amount, DefaultTier, now,
	).Scan(&balance)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: grant %s", userID)
	}
	if err := s.writeLedger(ctx, tx, userID, amount, reason, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: grant: commit tx")
	}
	return balance, nil
}

func (s *SQLiteStore) writeLedger(ctx context.Context, tx *sql.Tx, userID string, delta int, reason, at string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_ledger (id, user_id, delta, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, delta, reason, at)
	return eris.Wrap(err, "sqlite: write ledger")
}
