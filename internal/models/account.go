package models

import (
	"time"
)

// AccountStatus is the lifecycle state of an account
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "pending_verification"
	StatusActive              AccountStatus = "active"
	StatusInactive            AccountStatus = "inactive"
	StatusSuspended           AccountStatus = "suspended"
	StatusDeleted             AccountStatus = "deleted"
)

type Account struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Status       AccountStatus

	LoginAttempts   int
	LockedUntil     *time.Time // Set only while Status == StatusSuspended
	LastLoginAt     *time.Time
	EmailVerifiedAt *time.Time

	// One-shot token slots hold SHA-256 digests, never the plaintext
	EmailVerificationTokenHash    *string
	EmailVerificationTokenExpires *time.Time
	PasswordResetTokenHash        *string
	PasswordResetTokenExpires     *time.Time

	// Single active refresh chain
	RefreshTokenHash   *string
	RefreshTokenExpiry *time.Time

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked reports whether the brute-force lock is still in force at now
func (a *Account) IsLocked(now time.Time) bool {
	return a.Status == StatusSuspended && a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// RefreshTokenMatches reports whether digest is the live refresh token at now
func (a *Account) RefreshTokenMatches(digest string, now time.Time) bool {
	if a.RefreshTokenHash == nil || a.RefreshTokenExpiry == nil {
		return false
	}
	return *a.RefreshTokenHash == digest && !now.After(*a.RefreshTokenExpiry)
}
