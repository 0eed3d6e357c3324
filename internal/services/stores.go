package services

import (
	"context"
	"time"

	"github.com/BradenHooton/tally/internal/models"
)

// AccountStore defines the account data access used by the lifecycle services
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	ConsumeVerificationToken(ctx context.Context, digest string, now time.Time) (*models.Account, error)
	SetVerificationToken(ctx context.Context, id, digest string, expires, now time.Time) error
	SetPasswordResetToken(ctx context.Context, id, digest string, expires, now time.Time) error
	ConsumePasswordResetToken(ctx context.Context, digest, passwordHash string, now time.Time) (*models.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error

	UnlockExpiredSuspension(ctx context.Context, id string, now time.Time) (*models.Account, error)
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (*models.Account, error)
	DeactivateStale(ctx context.Context, cutoff time.Time, accountID string, now time.Time) ([]*models.Account, error)
	MarkInactive(ctx context.Context, id string, cutoff, now time.Time) (*models.Account, error)

	ListInactivityWarnings(ctx context.Context, from, to time.Time) ([]*models.Account, error)
	MarkDeletedForInactivity(ctx context.Context, cutoff, now time.Time) ([]*models.Account, error)
	SoftDelete(ctx context.Context, id string, now time.Time) error
}

// SessionStore defines the session registry operations. Compound operations
// that touch the account row run in a single transaction.
type SessionStore interface {
	ListLive(ctx context.Context, accountID string, now time.Time) ([]*models.Session, error)
	Revoke(ctx context.Context, accountID, sessionID string) error
	RevokeAll(ctx context.Context, accountID string) (int64, error)

	CompleteLogin(ctx context.Context, session *models.Session, refreshDigest string, refreshExpiry, now time.Time) error
	RotateRefresh(ctx context.Context, presentedDigest string, session *models.Session, newDigest string, newExpiry, now time.Time) error
	EndSession(ctx context.Context, accountID, accessDigest string, now time.Time) error
	EndAllSessions(ctx context.Context, accountID string, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditStore appends audit entries and counts recent ones
type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error)
	CountRecent(ctx context.Context, accountID, action string, since time.Time) (int64, error)
}

// EmailThrottle limits how often a mail-sending request may be honored per email
type EmailThrottle interface {
	Allow(ctx context.Context, purpose, email string) (bool, error)
}
