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

const sessionColumns = `id, account_id, token_hash, created_at, expires_at, device_info, ip_address, revoked`

// SessionRepository is the session registry. Operations that also touch the
// account's refresh slot run in a single transaction.
type SessionRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db, pool: db.Pool}
}

func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var s models.Session

	err := scanner.Scan(&s.ID, &s.AccountID, &s.TokenHash, &s.CreatedAt, &s.ExpiresAt, &s.DeviceInfo, &s.IPAddress, &s.Revoked)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

func scanSessionRows(rows pgx.Rows) ([]*models.Session, error) {
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return sessions, nil
}

func insertSession(ctx context.Context, tx pgx.Tx, s *models.Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sessions (id, account_id, token_hash, created_at, expires_at, device_info, ip_address, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)`

	_, err := tx.Exec(ctx, query, s.ID, s.AccountID, s.TokenHash, s.CreatedAt, s.ExpiresAt, s.DeviceInfo, s.IPAddress)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", database.MapPostgresError(err))
	}
	return nil
}

func clearRefreshSlot(ctx context.Context, tx pgx.Tx, accountID string, now time.Time) error {
	query := `UPDATE accounts SET refresh_token_hash = NULL, refresh_token_expiry = NULL, updated_at = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, query, accountID, now); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

func revokeAll(ctx context.Context, tx pgx.Tx, accountID string) (int64, error) {
	tag, err := tx.Exec(ctx, `UPDATE sessions SET revoked = TRUE WHERE account_id = $1 AND revoked = FALSE`, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetLiveByTokenHash returns the non-revoked, unexpired session for an access token digest
func (r *SessionRepository) GetLiveByTokenHash(ctx context.Context, digest string, now time.Time) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2`
	return scanSessionRow(r.pool.QueryRow(ctx, query, digest, now))
}

func (r *SessionRepository) ListLive(ctx context.Context, accountID string, now time.Time) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE account_id = $1 AND revoked = FALSE AND expires_at > $2
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	return scanSessionRows(rows)
}

// Revoke revokes one session owned by accountID
func (r *SessionRepository) Revoke(ctx context.Context, accountID, sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return models.ErrNotFound
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET revoked = TRUE WHERE id = $1 AND account_id = $2 AND revoked = FALSE`,
		sessionID, accountID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RevokeAll revokes every live session of the account, leaving the refresh chain intact
func (r *SessionRepository) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET revoked = TRUE WHERE account_id = $1 AND revoked = FALSE`, accountID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// CompleteLogin resets the failure counters, stamps last login, stores the new
// refresh digest and records the session in one transaction.
func (r *SessionRepository) CompleteLogin(ctx context.Context, session *models.Session, refreshDigest string, refreshExpiry, now time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE accounts
			SET login_attempts = 0, locked_until = NULL, last_login_at = $2,
				refresh_token_hash = $3, refresh_token_expiry = $4, updated_at = $2
			WHERE id = $1 AND status = 'active' AND deleted_at IS NULL`

		tag, err := tx.Exec(ctx, query, session.AccountID, now, refreshDigest, refreshExpiry)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}

		return insertSession(ctx, tx, session)
	})
}

// RotateRefresh exchanges the presented refresh digest for a new one while
// holding the account row lock. A digest that is not the live refresh token
// clears the slot and revokes every session; that revocation is committed and
// models.ErrInvalidOrReusedToken is returned. On a match all live sessions are
// revoked and session becomes the only live one.
func (r *SessionRepository) RotateRefresh(ctx context.Context, presentedDigest string, session *models.Session, newDigest string, newExpiry, now time.Time) error {
	reused := false

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var stored *string
		var expiry *time.Time
		err := tx.QueryRow(ctx,
			`SELECT refresh_token_hash, refresh_token_expiry FROM accounts WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
			session.AccountID,
		).Scan(&stored, &expiry)
		if err != nil {
			return database.MapPostgresError(err)
		}

		account := models.Account{RefreshTokenHash: stored, RefreshTokenExpiry: expiry}
		if !account.RefreshTokenMatches(presentedDigest, now) {
			reused = true
			if err := clearRefreshSlot(ctx, tx, session.AccountID, now); err != nil {
				return err
			}
			_, err := revokeAll(ctx, tx, session.AccountID)
			return err
		}

		if _, err := revokeAll(ctx, tx, session.AccountID); err != nil {
			return err
		}
		if err := insertSession(ctx, tx, session); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET refresh_token_hash = $2, refresh_token_expiry = $3, updated_at = $4 WHERE id = $1`,
			session.AccountID, newDigest, newExpiry, now,
		)
		if err != nil {
			return fmt.Errorf("failed to rotate refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if reused {
		return models.ErrInvalidOrReusedToken
	}
	return nil
}

// EndSession revokes the session bound to accessDigest and clears the refresh slot
func (r *SessionRepository) EndSession(ctx context.Context, accountID, accessDigest string, now time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE sessions SET revoked = TRUE WHERE account_id = $1 AND token_hash = $2`,
			accountID, accessDigest,
		)
		if err != nil {
			return fmt.Errorf("failed to revoke session: %w", err)
		}
		return clearRefreshSlot(ctx, tx, accountID, now)
	})
}

// EndAllSessions revokes every live session and clears the refresh slot
func (r *SessionRepository) EndAllSessions(ctx context.Context, accountID string, now time.Time) (int64, error) {
	var revoked int64

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		n, err := revokeAll(ctx, tx, accountID)
		if err != nil {
			return err
		}
		revoked = n
		return clearRefreshSlot(ctx, tx, accountID, now)
	})

	return revoked, err
}

// DeleteExpired removes sessions that are revoked or past expiry
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE revoked = TRUE OR expires_at <= $1`, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
