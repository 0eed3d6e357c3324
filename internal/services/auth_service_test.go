package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/tally/internal/models"
	"github.com/BradenHooton/tally/internal/notify"
	pkgauth "github.com/BradenHooton/tally/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Register / Verify Tests
// ============================================================================

func TestAuthService_Register_CreatesPendingAccount(t *testing.T) {
	h := newHarness(t)

	account, err := h.auth.Register(context.Background(), "  Jane ", "Jane@X.com ", testPassword)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPendingVerification, account.Status)
	assert.Equal(t, "jane@x.com", account.Email)
	assert.Equal(t, "Jane", account.FullName)
	assert.NotEqual(t, testPassword, account.PasswordHash)
	require.NotNil(t, account.EmailVerificationTokenExpires)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), *account.EmailVerificationTokenExpires)

	n := h.notifier.Last(t, notify.KindVerification)
	assert.Equal(t, "jane@x.com", n.To)
	assert.NotEmpty(t, n.Token)
	assert.Equal(t, pkgauth.HashToken(n.Token), *account.EmailVerificationTokenHash, "only the digest is stored")
	assert.Contains(t, h.audit.Actions(), models.AuditActionRegister)
}

func TestAuthService_Register_DuplicateEmailAnyCase(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(context.Background(), "Jane", "jane@x.com", testPassword)
	require.NoError(t, err)

	_, err = h.auth.Register(context.Background(), "Jane", "JANE@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.auth.Register(context.Background(), "Jane", "jane@x.com", "weak")

	var pwErr *pkgauth.PasswordValidationError
	assert.ErrorAs(t, err, &pwErr)
	assert.Empty(t, h.notifier.OfKind(notify.KindVerification))
}

func TestAuthService_Register_MissingFields(t *testing.T) {
	h := newHarness(t)

	_, err := h.auth.Register(context.Background(), " ", "jane@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthService_VerifyEmail_OneShot(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(context.Background(), "Jane", "jane@x.com", testPassword)
	require.NoError(t, err)
	token := h.notifier.Last(t, notify.KindVerification).Token

	account, err := h.auth.VerifyEmail(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, account.Status)
	assert.NotNil(t, account.EmailVerifiedAt)
	assert.Nil(t, account.EmailVerificationTokenHash)
	assert.Len(t, h.notifier.OfKind(notify.KindWelcome), 1)

	_, err = h.auth.VerifyEmail(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestAuthService_VerifyEmail_Expired(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(context.Background(), "Jane", "jane@x.com", testPassword)
	require.NoError(t, err)
	token := h.notifier.Last(t, notify.KindVerification).Token

	h.clock.Advance(25 * time.Hour)

	_, err = h.auth.VerifyEmail(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestAuthService_ResendVerification_ReplacesToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(context.Background(), "Jane", "jane@x.com", testPassword)
	require.NoError(t, err)
	first := h.notifier.Last(t, notify.KindVerification).Token

	require.NoError(t, h.auth.ResendVerification(context.Background(), "JANE@x.com"))
	second := h.notifier.Last(t, notify.KindVerification).Token
	assert.NotEqual(t, first, second)

	_, err = h.auth.VerifyEmail(context.Background(), first)
	assert.ErrorIs(t, err, models.ErrTokenInvalid, "the old token is discarded")

	_, err = h.auth.VerifyEmail(context.Background(), second)
	assert.NoError(t, err)
}

func TestAuthService_ResendVerification_SilentForUnknownAndVerified(t *testing.T) {
	h := newHarness(t)
	h.registerVerified(t, "jane@x.com")
	before := len(h.notifier.OfKind(notify.KindVerification))

	assert.NoError(t, h.auth.ResendVerification(context.Background(), "nobody@x.com"))
	assert.NoError(t, h.auth.ResendVerification(context.Background(), "jane@x.com"))
	assert.Len(t, h.notifier.OfKind(notify.KindVerification), before)
}

func TestAuthService_ResendVerification_Throttled(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(context.Background(), "Jane", "jane@x.com", testPassword)
	require.NoError(t, err)
	h.auth.WithThrottle(&MockThrottle{AllowFunc: func(ctx context.Context, purpose, email string) (bool, error) {
		return false, nil
	}})

	require.NoError(t, h.auth.ResendVerification(context.Background(), "jane@x.com"))
	assert.Len(t, h.notifier.OfKind(notify.KindVerification), 1)
}

func TestAuthService_ResendVerification_ThrottleFailsOpen(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(context.Background(), "Jane", "jane@x.com", testPassword)
	require.NoError(t, err)
	h.auth.WithThrottle(&MockThrottle{AllowFunc: func(ctx context.Context, purpose, email string) (bool, error) {
		return false, errors.New("redis down")
	}})

	require.NoError(t, h.auth.ResendVerification(context.Background(), "jane@x.com"))
	assert.Len(t, h.notifier.OfKind(notify.KindVerification), 2)
}

// ============================================================================
// Login Tests
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")

	// Two failures first so the reset is observable
	for i := 0; i < 2; i++ {
		_, err := h.login("jane@x.com", "Wrong1!x")
		require.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	result, err := h.login("JANE@x.com", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	stored := h.account(t, account.ID)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Nil(t, stored.LockedUntil)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, h.clock.Now(), *stored.LastLoginAt)
	assert.True(t, stored.RefreshTokenMatches(pkgauth.HashToken(result.Tokens.RefreshToken), h.clock.Now()))

	sessions := h.liveSessions(t, account.ID)
	require.Len(t, sessions, 1)
	assert.Equal(t, pkgauth.HashToken(result.Tokens.AccessToken), sessions[0].TokenHash)
	assert.Equal(t, "test-agent", sessions[0].DeviceInfo)
	assert.Equal(t, "203.0.113.7", sessions[0].IPAddress)

	login := h.notifier.Last(t, notify.KindLogin)
	assert.Equal(t, "203.0.113.7", login.Details["ip_address"])
}

func TestAuthService_Login_UnknownEmailIndistinguishable(t *testing.T) {
	h := newHarness(t)
	h.registerVerified(t, "jane@x.com")

	_, unknownErr := h.login("nobody@x.com", testPassword)
	_, wrongErr := h.login("jane@x.com", "Wrong1!x")

	assert.ErrorIs(t, unknownErr, models.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, models.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestAuthService_Login_PendingRequiresVerification(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Register(context.Background(), "Jane", "jane@x.com", testPassword)
	require.NoError(t, err)

	_, err = h.login("jane@x.com", testPassword)

	var statusErr *models.AccountStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.ErrorIs(t, err, models.ErrVerificationRequired)
	assert.Equal(t, models.StatusPendingVerification, statusErr.Status)
}

func TestAuthService_Login_FiveFailuresSuspend(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")

	for i := 1; i <= 4; i++ {
		_, err := h.login("jane@x.com", "Wrong1!x")
		require.ErrorIs(t, err, models.ErrInvalidCredentials)
		assert.Equal(t, i, h.account(t, account.ID).LoginAttempts)
	}

	_, err := h.login("jane@x.com", "Wrong1!x")
	require.ErrorIs(t, err, models.ErrInvalidCredentials, "the locking attempt still reports invalid credentials")

	stored := h.account(t, account.ID)
	assert.Equal(t, models.StatusSuspended, stored.Status)
	assert.Equal(t, 0, stored.LoginAttempts)
	require.NotNil(t, stored.LockedUntil)
	assert.Equal(t, h.clock.Now().Add(5*time.Hour), *stored.LockedUntil)

	assert.Len(t, h.notifier.OfKind(notify.KindSuspended), 1)
	assert.Contains(t, h.audit.Actions(), models.AuditActionAccountLocked)
}

func TestAuthService_Login_LockedNeverChecksPassword(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	for i := 0; i < 5; i++ {
		_, _ = h.login("jane@x.com", "Wrong1!x")
	}
	h.clock.Advance(90 * time.Minute)

	// Even the right password is refused while locked
	_, err := h.login("jane@x.com", testPassword)

	var locked *models.LockedError
	require.ErrorAs(t, err, &locked)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.Equal(t, 210, locked.RemainingMinutes())
	assert.Equal(t, models.StatusSuspended, h.account(t, account.ID).Status)
	assert.Empty(t, h.liveSessions(t, account.ID))
	assert.Len(t, h.notifier.OfKind(notify.KindSuspended), 2)
}

func TestAuthService_Login_LockExpiryDemotesToPending(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	for i := 0; i < 5; i++ {
		_, _ = h.login("jane@x.com", "Wrong1!x")
	}
	h.clock.Advance(5*time.Hour + time.Second)

	_, err := h.login("jane@x.com", testPassword)

	assert.ErrorIs(t, err, models.ErrVerificationRequired)
	stored := h.account(t, account.ID)
	assert.Equal(t, models.StatusPendingVerification, stored.Status)
	assert.Nil(t, stored.LockedUntil)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Contains(t, h.audit.Actions(), models.AuditActionAccountUnlocked)
}

func TestAuthService_Login_InlineInactivity(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	_, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	h.clock.Advance(8 * 24 * time.Hour)

	// Password is not checked
	_, err = h.login("jane@x.com", "Wrong1!x")

	var statusErr *models.AccountStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.ErrorIs(t, err, models.ErrInactiveAccount)
	assert.Equal(t, models.StatusInactive, statusErr.Status)

	stored := h.account(t, account.ID)
	assert.Equal(t, models.StatusInactive, stored.Status)
	assert.Equal(t, 0, stored.LoginAttempts)

	_, err = h.login("jane@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrInactiveAccount)
}

func TestAuthService_Login_StaleAfterLockExpiryBecomesInactive(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	_, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	h.clock.Advance(6 * 24 * time.Hour)
	for i := 0; i < 5; i++ {
		_, err = h.login("jane@x.com", "Wrong1!x")
		require.ErrorIs(t, err, models.ErrInvalidCredentials)
	}
	require.Equal(t, models.StatusSuspended, h.account(t, account.ID).Status)

	// Lock has expired and the last login is now eight days old
	h.clock.Advance(2 * 24 * time.Hour)

	_, err = h.login("jane@x.com", "Wrong1!x")
	var statusErr *models.AccountStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.ErrorIs(t, err, models.ErrInactiveAccount)
	assert.Equal(t, models.StatusInactive, statusErr.Status)

	stored := h.account(t, account.ID)
	assert.Equal(t, models.StatusInactive, stored.Status)
	assert.Nil(t, stored.LockedUntil)
	assert.Contains(t, h.audit.Actions(), models.AuditActionAccountInactive)
}

func TestAuthService_Login_ConcurrentFailuresCountEveryAttempt(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.login("jane@x.com", "Wrong1!x")
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, h.account(t, account.ID).LoginAttempts)
}

// ============================================================================
// Refresh Tests
// ============================================================================

func TestAuthService_Refresh_RotatesAndDetectsReuse(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	result, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)
	r1 := result.Tokens.RefreshToken
	a1 := result.Tokens.AccessToken

	pair, err := h.auth.Refresh(context.Background(), r1, models.SessionMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, r1, pair.RefreshToken)

	// The prior access session is revoked, the new one is live
	_, err = h.gateway.Authenticate(context.Background(), a1)
	assert.ErrorIs(t, err, models.ErrSessionInvalid)
	_, err = h.gateway.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Len(t, h.liveSessions(t, account.ID), 1)

	// Replaying R1 is theft
	_, err = h.auth.Refresh(context.Background(), r1, models.SessionMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidOrReusedToken)
	assert.Empty(t, h.liveSessions(t, account.ID))
	assert.Nil(t, h.account(t, account.ID).RefreshTokenHash)
	assert.Contains(t, h.audit.Actions(), models.AuditActionRefreshTokenReuse)

	// R2 died with the chain
	_, err = h.auth.Refresh(context.Background(), pair.RefreshToken, models.SessionMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidOrReusedToken)
}

func TestAuthService_Refresh_RejectsAccessToken(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	result, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	_, err = h.auth.Refresh(context.Background(), result.Tokens.AccessToken, models.SessionMeta{})
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	// A malformed token revokes nothing
	assert.Len(t, h.liveSessions(t, account.ID), 1)
}

func TestAuthService_Refresh_StoredExpiryPassedIsReuse(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	result, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	h.setAccount(account.ID, func(a *models.Account) {
		a.RefreshTokenExpiry = timePtr(h.clock.Now().Add(-time.Minute))
	})

	_, err = h.auth.Refresh(context.Background(), result.Tokens.RefreshToken, models.SessionMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidOrReusedToken)
	assert.Empty(t, h.liveSessions(t, account.ID))
}

func TestAuthService_Refresh_DeletedAccount(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	result, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)
	require.NoError(t, h.auth.DeleteAccount(context.Background(), account.ID))

	_, err = h.auth.Refresh(context.Background(), result.Tokens.RefreshToken, models.SessionMeta{})
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestAuthService_Refresh_ConcurrentOneWins(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	result, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.auth.Refresh(context.Background(), result.Tokens.RefreshToken, models.SessionMeta{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidOrReusedToken)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Empty(t, h.liveSessions(t, account.ID), "the losing request revoked the chain")
}

// ============================================================================
// Logout Tests
// ============================================================================

func TestAuthService_Logout(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	first, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)
	second, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, h.auth.Logout(context.Background(), account.ID, first.Tokens.AccessToken))

	_, err = h.gateway.Authenticate(context.Background(), first.Tokens.AccessToken)
	assert.ErrorIs(t, err, models.ErrSessionInvalid)
	_, err = h.gateway.Authenticate(context.Background(), second.Tokens.AccessToken)
	assert.NoError(t, err, "other sessions stay live")

	_, err = h.auth.Refresh(context.Background(), second.Tokens.RefreshToken, models.SessionMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidOrReusedToken, "logout ends the refresh chain")
}

func TestAuthService_LogoutAll(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	first, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)
	second, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	revoked, err := h.auth.LogoutAll(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	for _, token := range []string{first.Tokens.AccessToken, second.Tokens.AccessToken} {
		_, err = h.gateway.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, models.ErrSessionInvalid)
	}
	assert.Nil(t, h.account(t, account.ID).RefreshTokenHash)
}

// ============================================================================
// Password Tests
// ============================================================================

func TestAuthService_ForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	h := newHarness(t)

	assert.NoError(t, h.auth.ForgotPassword(context.Background(), "nobody@x.com"))
	assert.Empty(t, h.notifier.OfKind(notify.KindPasswordReset))
}

func TestAuthService_ResetPassword_Flow(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	result, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, h.auth.ForgotPassword(context.Background(), "Jane@x.com"))
	reset := h.notifier.Last(t, notify.KindPasswordReset)
	assert.Equal(t, h.clock.Now().Add(time.Hour), reset.ExpiresAt)

	require.NoError(t, h.auth.ResetPassword(context.Background(), reset.Token, "NewSecret2@"))

	stored := h.account(t, account.ID)
	assert.Nil(t, stored.PasswordResetTokenHash)
	assert.Nil(t, stored.RefreshTokenHash)
	assert.Len(t, h.notifier.OfKind(notify.KindPasswordChanged), 1)

	_, err = h.auth.Refresh(context.Background(), result.Tokens.RefreshToken, models.SessionMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidOrReusedToken)

	_, err = h.login("jane@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = h.login("jane@x.com", "NewSecret2@")
	assert.NoError(t, err)

	assert.ErrorIs(t, h.auth.ResetPassword(context.Background(), reset.Token, "Another3#"), models.ErrTokenInvalid)
}

func TestAuthService_ResetPassword_ExpiredToken(t *testing.T) {
	h := newHarness(t)
	h.registerVerified(t, "jane@x.com")
	require.NoError(t, h.auth.ForgotPassword(context.Background(), "jane@x.com"))
	token := h.notifier.Last(t, notify.KindPasswordReset).Token

	h.clock.Advance(61 * time.Minute)

	assert.ErrorIs(t, h.auth.ResetPassword(context.Background(), token, "NewSecret2@"), models.ErrTokenInvalid)
}

func TestAuthService_ChangePassword(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	result, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	err = h.auth.ChangePassword(context.Background(), account.ID, "Wrong1!x", "NewSecret2@")
	assert.ErrorIs(t, err, models.ErrCurrentPasswordIncorrect)

	require.NoError(t, h.auth.ChangePassword(context.Background(), account.ID, testPassword, "NewSecret2@"))

	// Sessions and the refresh chain are untouched
	_, err = h.gateway.Authenticate(context.Background(), result.Tokens.AccessToken)
	assert.NoError(t, err)
	assert.NotNil(t, h.account(t, account.ID).RefreshTokenHash)

	_, err = h.login("jane@x.com", "NewSecret2@")
	assert.NoError(t, err)
}

// ============================================================================
// Delete / Profile Tests
// ============================================================================

func TestAuthService_DeleteAccount(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")
	result, err := h.login("jane@x.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, h.auth.DeleteAccount(context.Background(), account.ID))

	stored := h.account(t, account.ID)
	assert.Equal(t, models.StatusDeleted, stored.Status)
	assert.NotNil(t, stored.DeletedAt)
	assert.Empty(t, h.liveSessions(t, account.ID))

	_, err = h.gateway.Authenticate(context.Background(), result.Tokens.AccessToken)
	assert.ErrorIs(t, err, models.ErrSessionInvalid)

	_, err = h.auth.GetProfile(context.Background(), account.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.ErrorIs(t, h.auth.DeleteAccount(context.Background(), account.ID), models.ErrNotFound)

	// The email is free again
	_, err = h.auth.Register(context.Background(), "Jane", "jane@x.com", testPassword)
	assert.NoError(t, err)
}

func TestNewAccountResponse_OmitsSecrets(t *testing.T) {
	h := newHarness(t)
	account := h.registerVerified(t, "jane@x.com")

	resp := NewAccountResponse(account)
	assert.Equal(t, account.ID, resp.ID)
	assert.Equal(t, "active", resp.Status)
	assert.NotNil(t, resp.EmailVerifiedAt)
}

// ============================================================================
// End-to-end lifecycle
// ============================================================================

func TestAuthService_SuspendUnlockDemoteCycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	account, err := h.auth.Register(ctx, "Jane", "jane@x.com", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingVerification, account.Status)

	verified, err := h.auth.VerifyEmail(ctx, h.notifier.Last(t, notify.KindVerification).Token)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, verified.Status)

	for i := 0; i < 5; i++ {
		_, err = h.login("jane@x.com", "Wrong1!x")
		require.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	_, err = h.login("jane@x.com", "Wrong1!x")
	require.ErrorIs(t, err, models.ErrAccountLocked)

	h.clock.Advance(5*time.Hour + time.Minute)

	_, err = h.login("jane@x.com", "Wrong1!x")
	var statusErr *models.AccountStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.ErrorIs(t, err, models.ErrVerificationRequired)
	assert.Equal(t, models.StatusPendingVerification, statusErr.Status)

	stored := h.account(t, account.ID)
	assert.Equal(t, models.StatusPendingVerification, stored.Status)
	assert.Nil(t, stored.LockedUntil)

	// Re-verification restores access
	require.NoError(t, h.auth.ResendVerification(ctx, "jane@x.com"))
	_, err = h.auth.VerifyEmail(ctx, h.notifier.Last(t, notify.KindVerification).Token)
	require.NoError(t, err)
	_, err = h.login("jane@x.com", "Secret1!")
	assert.NoError(t, err)
}

func TestAuthService_AuditFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	h.audit.err = errors.New("connection refused")

	_, err := h.auth.Register(context.Background(), "Jane", "jane@x.com", testPassword)
	require.NoError(t, err)
	assert.Empty(t, h.audit.Actions())
	assert.Len(t, h.notifier.OfKind(notify.KindVerification), 1)
}
