package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rescuelog/backend/internal/model"
)

const accountColumns = `
	id, full_name, phone, email, password_hash, role,
	failed_login_attempts, lock_until, refresh_token_hash, created_at, updated_at
`

func (db *Postgres) EnsureAuthSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'doctor', 'admin')),
			failed_login_attempts INTEGER NOT NULL DEFAULT 0 CHECK (failed_login_attempts >= 0),
			lock_until TIMESTAMPTZ,
			refresh_token_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS accounts_lock_until_idx ON accounts(lock_until) WHERE lock_until IS NOT NULL`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateAccount(ctx context.Context, acct *model.Account) (*model.Account, error) {
	query := `
		INSERT INTO accounts (id, full_name, phone, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + accountColumns
	row := db.Pool.QueryRow(ctx, query,
		acct.ID,
		acct.FullName,
		acct.Phone,
		acct.Email,
		acct.PasswordHash,
		string(acct.Role),
	)
	return scanAccount(row)
}

func (db *Postgres) GetAccountByPhone(ctx context.Context, phone string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE phone = $1`
	return scanAccount(db.Pool.QueryRow(ctx, query, phone))
}

func (db *Postgres) GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(db.Pool.QueryRow(ctx, query, id))
}

// IncrementFailedLogins bumps the counter in place and returns the new value.
func (db *Postgres) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts
	`
	var count int
	if err := db.Pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (db *Postgres) SetLockUntil(ctx context.Context, id uuid.UUID, until time.Time) error {
	query := `
		UPDATE accounts
		SET lock_until = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := db.Pool.Exec(ctx, query, id, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (db *Postgres) ResetLoginAttempts(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE accounts
		SET failed_login_attempts = 0, lock_until = NULL, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := db.Pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetRefreshTokenHash overwrites the single refresh slot. An empty hash ends every session.
func (db *Postgres) SetRefreshTokenHash(ctx context.Context, id uuid.UUID, tokenHash string) error {
	query := `
		UPDATE accounts
		SET refresh_token_hash = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := db.Pool.Exec(ctx, query, id, tokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdatePasswordHash stores a new hash and clears the refresh slot in one statement.
func (db *Postgres) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, refresh_token_hash = '', updated_at = NOW()
		WHERE id = $1
	`
	tag, err := db.Pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (db *Postgres) DeleteAccountByPhone(ctx context.Context, phone string) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM accounts WHERE phone = $1`, phone)
	return err
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		acct model.Account
		role string
	)
	err := row.Scan(
		&acct.ID,
		&acct.FullName,
		&acct.Phone,
		&acct.Email,
		&acct.PasswordHash,
		&role,
		&acct.FailedLoginAttempts,
		&acct.LockUntil,
		&acct.RefreshTokenHash,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	acct.Role = model.Role(role)
	return &acct, nil
}
