package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/tally/internal/database"
	"github.com/BradenHooton/tally/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// accountColumns is the select list understood by scanAccountRow
const accountColumns = `
	id, full_name, email, password_hash, status, login_attempts, locked_until,
	last_login_at, email_verified_at,
	email_verification_token_hash, email_verification_token_expires,
	password_reset_token_hash, password_reset_token_expires,
	refresh_token_hash, refresh_token_expiry,
	deleted_at, created_at, updated_at`

// stalePredicate is shared by the login-time inactivity check and the daily sweep
const stalePredicate = `status = 'active' AND deleted_at IS NULL AND last_login_at IS NOT NULL AND last_login_at < $1`

type AccountRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db, pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	var status string

	err := scanner.Scan(
		&a.ID, &a.FullName, &a.Email, &a.PasswordHash, &status, &a.LoginAttempts, &a.LockedUntil,
		&a.LastLoginAt, &a.EmailVerifiedAt,
		&a.EmailVerificationTokenHash, &a.EmailVerificationTokenExpires,
		&a.PasswordResetTokenHash, &a.PasswordResetTokenExpires,
		&a.RefreshTokenHash, &a.RefreshTokenExpiry,
		&a.DeletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	a.Status = models.AccountStatus(status)

	return &a, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	return accounts, nil
}

// Create inserts a new account. A live account with the same email (any case)
// yields models.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = models.StatusPendingVerification
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO accounts (id, full_name, email, password_hash, status,
			email_verification_token_hash, email_verification_token_expires, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + accountColumns

	created, err := scanAccountRow(r.pool.QueryRow(ctx, query,
		a.ID, a.FullName, a.Email, a.PasswordHash, string(a.Status),
		a.EmailVerificationTokenHash, a.EmailVerificationTokenExpires, a.CreatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND deleted_at IS NULL`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively among live accounts
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1) AND deleted_at IS NULL`
	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

// ConsumeVerificationToken activates the account holding digest in one statement,
// so a token can verify at most once.
func (r *AccountRepository) ConsumeVerificationToken(ctx context.Context, digest string, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET status = 'active', email_verified_at = $2,
			email_verification_token_hash = NULL, email_verification_token_expires = NULL,
			updated_at = $2
		WHERE email_verification_token_hash = $1
			AND email_verification_token_expires > $2
			AND deleted_at IS NULL
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, digest, now))
}

// SetVerificationToken overwrites the verification slot of a pending account
func (r *AccountRepository) SetVerificationToken(ctx context.Context, id, digest string, expires, now time.Time) error {
	query := `
		UPDATE accounts
		SET email_verification_token_hash = $2, email_verification_token_expires = $3, updated_at = $4
		WHERE id = $1 AND status = 'pending_verification' AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, digest, expires, now)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetPasswordResetToken(ctx context.Context, id, digest string, expires, now time.Time) error {
	query := `
		UPDATE accounts
		SET password_reset_token_hash = $2, password_reset_token_expires = $3, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, digest, expires, now)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ConsumePasswordResetToken replaces the password hash of the account holding
// digest, clearing the reset slot and the refresh chain in the same statement.
func (r *AccountRepository) ConsumePasswordResetToken(ctx context.Context, digest, passwordHash string, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET password_hash = $2,
			password_reset_token_hash = NULL, password_reset_token_expires = NULL,
			refresh_token_hash = NULL, refresh_token_expiry = NULL,
			updated_at = $3
		WHERE password_reset_token_hash = $1
			AND password_reset_token_expires > $3
			AND deleted_at IS NULL
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, digest, passwordHash, now))
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	query := `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, passwordHash, now)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UnlockExpiredSuspension clears an expired lock and demotes the account to
// pending verification. Returns models.ErrNotFound when the lock is still in
// force or another request already released it.
func (r *AccountRepository) UnlockExpiredSuspension(ctx context.Context, id string, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET status = 'pending_verification', locked_until = NULL, login_attempts = 0, updated_at = $2
		WHERE id = $1 AND status = 'suspended' AND deleted_at IS NULL
			AND (locked_until IS NULL OR locked_until <= $2)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, id, now))
}

// RecordFailedLogin increments the attempt counter atomically. When the new
// count reaches threshold the account is suspended until lockUntil and the
// counter resets. Only active accounts are affected.
func (r *AccountRepository) RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET login_attempts = CASE WHEN login_attempts + 1 >= $2 THEN 0 ELSE login_attempts + 1 END,
			status = CASE WHEN login_attempts + 1 >= $2 THEN 'suspended' ELSE status END,
			locked_until = CASE WHEN login_attempts + 1 >= $2 THEN $3::timestamptz ELSE locked_until END,
			updated_at = $4
		WHERE id = $1 AND status = 'active' AND deleted_at IS NULL
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, id, threshold, lockUntil, now))
}

// DeactivateStale moves active accounts whose last login is before cutoff to
// inactive. With accountID set only that account is considered. Returns the
// accounts this call transitioned.
func (r *AccountRepository) DeactivateStale(ctx context.Context, cutoff time.Time, accountID string, now time.Time) ([]*models.Account, error) {
	query := `
		UPDATE accounts
		SET status = 'inactive', updated_at = $2
		WHERE ` + stalePredicate + ` AND ($3 = '' OR id::text = $3)
		RETURNING ` + accountColumns

	rows, err := r.pool.Query(ctx, query, cutoff, now, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate stale accounts: %w", err)
	}

	return scanAccountRows(rows)
}

// MarkInactive moves a stale account to inactive whatever its current
// non-deleted status, clearing any lock. Returns models.ErrNotFound when the
// account is already inactive or its last login is not before cutoff.
func (r *AccountRepository) MarkInactive(ctx context.Context, id string, cutoff, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET status = 'inactive', locked_until = NULL, login_attempts = 0, updated_at = $3
		WHERE id = $1 AND status <> 'inactive' AND deleted_at IS NULL
			AND last_login_at IS NOT NULL AND last_login_at < $2
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, id, cutoff, now))
}

// ListInactivityWarnings returns active accounts whose last login falls strictly
// between from and to.
func (r *AccountRepository) ListInactivityWarnings(ctx context.Context, from, to time.Time) ([]*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE status = 'active' AND deleted_at IS NULL
			AND last_login_at > $1 AND last_login_at < $2
		ORDER BY last_login_at`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query inactivity warnings: %w", err)
	}

	return scanAccountRows(rows)
}

// MarkDeletedForInactivity soft-deletes inactive accounts untouched since cutoff
// and returns only the rows this call transitioned, so overlapping runs never
// report the same account twice.
func (r *AccountRepository) MarkDeletedForInactivity(ctx context.Context, cutoff, now time.Time) ([]*models.Account, error) {
	query := `
		UPDATE accounts
		SET status = 'deleted', deleted_at = $2, updated_at = $2,
			refresh_token_hash = NULL, refresh_token_expiry = NULL
		WHERE status = 'inactive' AND deleted_at IS NULL AND updated_at < $1
		RETURNING ` + accountColumns

	rows, err := r.pool.Query(ctx, query, cutoff, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark inactive accounts deleted: %w", err)
	}

	return scanAccountRows(rows)
}

// SoftDelete removes all sessions of the account and marks it deleted in one transaction
func (r *AccountRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}

		query := `
			UPDATE accounts
			SET status = 'deleted', deleted_at = $2, updated_at = $2, locked_until = NULL,
				email_verification_token_hash = NULL, email_verification_token_expires = NULL,
				password_reset_token_hash = NULL, password_reset_token_expires = NULL,
				refresh_token_hash = NULL, refresh_token_expiry = NULL
			WHERE id = $1 AND deleted_at IS NULL`

		tag, err := tx.Exec(ctx, query, id, now)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}
