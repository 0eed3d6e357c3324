package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Credential and token errors
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrTokenInvalid             = errors.New("invalid or expired token")
	ErrTokenExpired             = errors.New("token expired")
	ErrSessionInvalid           = errors.New("session expired or revoked")
	ErrAuthenticationFailed     = errors.New("authentication failed")
	ErrInvalidOrReusedToken     = errors.New("invalid or reused refresh token")
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")

	// Account state errors
	ErrAccountLocked        = errors.New("account is temporarily locked")
	ErrVerificationRequired = errors.New("email verification required")
	ErrInactiveAccount      = errors.New("account is inactive")
)

// LockedError reports a suspended account together with the time left on the lock.
// It never carries the attempt count.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account suspended, try again in %d minutes", e.RemainingMinutes())
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RemainingMinutes rounds up to whole minutes and is always at least 1
func (e *LockedError) RemainingMinutes() int {
	minutes := int(math.Ceil(e.Remaining.Minutes()))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// AccountStatusError wraps ErrVerificationRequired or ErrInactiveAccount with the
// account's current status so callers can prompt re-verification.
type AccountStatusError struct {
	Err    error
	Status AccountStatus
}

func (e *AccountStatusError) Error() string {
	return fmt.Sprintf("%s (status: %s)", e.Err.Error(), e.Status)
}

func (e *AccountStatusError) Unwrap() error {
	return e.Err
}

// NewVerificationRequired builds the error returned when an account is not active
func NewVerificationRequired(status AccountStatus) error {
	return &AccountStatusError{Err: ErrVerificationRequired, Status: status}
}

// NewInactiveAccount builds the error returned by the inline inactivity check
func NewInactiveAccount() error {
	return &AccountStatusError{Err: ErrInactiveAccount, Status: StatusInactive}
}
