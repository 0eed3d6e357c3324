package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/tally/internal/auth"
	"github.com/BradenHooton/tally/internal/limiter"
	"github.com/BradenHooton/tally/internal/models"
	"github.com/BradenHooton/tally/internal/notify"
	"github.com/BradenHooton/tally/internal/telemetry"
	pkgauth "github.com/BradenHooton/tally/pkg/auth"
	pkglogger "github.com/BradenHooton/tally/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AuthPolicy holds the token lifetimes and lockout limits of the lifecycle
type AuthPolicy struct {
	VerificationTokenTTL  time.Duration
	PasswordResetTokenTTL time.Duration
	MaxLoginAttempts      int
	LockoutDuration       time.Duration
	InactivityWindow      time.Duration
}

// AuthService drives the account state machine: registration, verification,
// login with lockout, refresh rotation, logout, password recovery and deletion.
type AuthService struct {
	accounts AccountStore
	sessions SessionStore
	tokens   *auth.TokenManager
	hasher   *pkgauth.Hasher
	notifier notify.Enqueuer
	audit    *AuditService
	throttle EmailThrottle
	timing   *auth.TimingDelay
	policy   AuthPolicy
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewAuthService(
	accounts AccountStore,
	sessions SessionStore,
	tokens *auth.TokenManager,
	hasher *pkgauth.Hasher,
	notifier notify.Enqueuer,
	audit *AuditService,
	policy AuthPolicy,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		audit:    audit,
		policy:   policy,
		logger:   logger,
		tracer:   telemetry.Tracer(),
		now:      time.Now,
	}
}

func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// WithThrottle limits resend-verification and forgot-password per email
func (s *AuthService) WithThrottle(throttle EmailThrottle) *AuthService {
	s.throttle = throttle
	return s
}

// WithTimingDelay pads failed logins
func (s *AuthService) WithTimingDelay(timing *auth.TimingDelay) *AuthService {
	s.timing = timing
	return s
}

// LoginInput carries the credentials and client description of a login
type LoginInput struct {
	Email    string
	Password string
	Meta     models.SessionMeta
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Tokens  *models.TokenPair
	Account *models.Account
}

// AccountResponse is the public projection of an account
type AccountResponse struct {
	ID              string     `json:"id"`
	FullName        string     `json:"fullName"`
	Email           string     `json:"email"`
	Status          string     `json:"status"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func NewAccountResponse(a *models.Account) *AccountResponse {
	return &AccountResponse{
		ID:              a.ID,
		FullName:        a.FullName,
		Email:           a.Email,
		Status:          string(a.Status),
		EmailVerifiedAt: a.EmailVerifiedAt,
		LastLoginAt:     a.LastLoginAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// endSpan marks the span failed for unexpected errors only
func endSpan(span trace.Span, err error) {
	if err != nil && errors.Is(err, models.ErrInternalServer) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Register creates a pending account and sends its verification link
func (s *AuthService) Register(ctx context.Context, fullName, email, password string) (account *models.Account, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer func() { endSpan(span, err) }()

	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)

	if fullName == "" || email == "" {
		return nil, fmt.Errorf("%w: full name and email are required", models.ErrBadRequest)
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		s.logger.Info("registration failed: email already in use")
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	digest := pkgauth.HashToken(token)
	expires := now.Add(s.policy.VerificationTokenTTL)

	created, err := s.accounts.Create(ctx, &models.Account{
		FullName:                      fullName,
		Email:                         email,
		PasswordHash:                  hash,
		Status:                        models.StatusPendingVerification,
		EmailVerificationTokenHash:    &digest,
		EmailVerificationTokenExpires: &expires,
		CreatedAt:                     now,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.notifier.Enqueue(notify.Notification{
		Kind:      notify.KindVerification,
		To:        created.Email,
		Name:      created.FullName,
		Token:     token,
		ExpiresAt: expires,
	})
	s.audit.Record(ctx, models.AuditActionRegister, created.ID, map[string]any{
		"email": pkglogger.SanitizedEmail(created.Email),
	})
	s.logger.Info("account registered", slog.String("account_id", created.ID))

	return created, nil
}

// VerifyEmail activates the account holding token. A token verifies at most once.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.ErrTokenInvalid
	}

	account, err := s.accounts.ConsumeVerificationToken(ctx, pkgauth.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTokenInvalid
		}
		s.logger.Error("failed to consume verification token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.notifier.Enqueue(notify.Notification{Kind: notify.KindWelcome, To: account.Email, Name: account.FullName})
	s.audit.Record(ctx, models.AuditActionEmailVerified, account.ID, map[string]any{
		"email": pkglogger.SanitizedEmail(account.Email),
	})

	return account, nil
}

// allow consults the throttle, failing open when it is unavailable
func (s *AuthService) allow(ctx context.Context, purpose, email string) bool {
	if s.throttle == nil {
		return true
	}
	allowed, err := s.throttle.Allow(ctx, purpose, email)
	if err != nil {
		s.logger.Warn("email throttle unavailable", slog.String("purpose", purpose), slog.Any("error", err))
		return true
	}
	if !allowed {
		s.logger.Info("request throttled",
			slog.String("purpose", purpose),
			slog.String("email", pkglogger.SanitizedEmail(email)),
		)
	}
	return allowed
}

// ResendVerification replaces the verification token of a pending account.
// Unknown, already verified and throttled emails are silently ignored.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" || !s.allow(ctx, limiter.PurposeResendVerification, email) {
		return nil
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to get account for resend", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if account.Status != models.StatusPendingVerification {
		return nil
	}

	token, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	now := s.now()
	expires := now.Add(s.policy.VerificationTokenTTL)
	if err := s.accounts.SetVerificationToken(ctx, account.ID, pkgauth.HashToken(token), expires, now); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Verified or deleted in the meantime
			return nil
		}
		s.logger.Error("failed to store verification token", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.notifier.Enqueue(notify.Notification{
		Kind:      notify.KindVerification,
		To:        account.Email,
		Name:      account.FullName,
		Token:     token,
		ExpiresAt: expires,
	})
	s.audit.Record(ctx, models.AuditActionResendVerification, account.ID, nil)

	return nil
}

// Login evaluates, in order: an expired or active lock, the inline inactivity
// check, the account status, then the password.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	start := time.Now()
	result, err = s.login(ctx, in)
	if err != nil {
		s.timing.PadFrom(ctx, start)
		return nil, err
	}

	span.SetAttributes(attribute.String("account.id", result.Account.ID))
	return result, nil
}

func (s *AuthService) login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, models.ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.audit.Record(ctx, models.AuditActionFailedLogin, "", map[string]any{
				"reason": "unknown_email",
				"email":  pkglogger.SanitizedEmail(email),
				"ip":     in.Meta.IPAddress,
			})
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()

	// a. Brute-force lock
	if account.Status == models.StatusSuspended {
		if account.IsLocked(now) {
			s.notifier.Enqueue(notify.Notification{
				Kind:      notify.KindSuspended,
				To:        account.Email,
				Name:      account.FullName,
				ExpiresAt: *account.LockedUntil,
			})
			s.audit.Record(ctx, models.AuditActionAccountSuspended, account.ID, map[string]any{
				"ip": in.Meta.IPAddress,
			})
			return nil, &models.LockedError{Remaining: account.LockedUntil.Sub(now)}
		}

		account, err = s.unlock(ctx, account.ID, now)
		if err != nil {
			return nil, err
		}
	}

	// b. Inline inactivity check, same predicate as the daily sweep for active accounts
	cutoff := now.Add(-s.policy.InactivityWindow)
	if account.LastLoginAt != nil && account.LastLoginAt.Before(cutoff) {
		if account.Status != models.StatusInactive {
			if err := s.deactivate(ctx, account, cutoff, now); err != nil {
				return nil, err
			}
		}
		return nil, models.NewInactiveAccount()
	}

	// c. Only active accounts may sign in
	if account.Status != models.StatusActive {
		s.logger.Info("login blocked by account status",
			slog.String("account_id", account.ID),
			slog.String("status", string(account.Status)),
		)
		return nil, models.NewVerificationRequired(account.Status)
	}

	// d. Password
	if err := s.hasher.Compare(account.PasswordHash, in.Password); err != nil {
		s.recordFailedLogin(ctx, account, in.Meta, now)
		return nil, models.ErrInvalidCredentials
	}

	// e. Success
	return s.completeLogin(ctx, account, in.Meta, now)
}

func (s *AuthService) unlock(ctx context.Context, accountID string, now time.Time) (*models.Account, error) {
	unlocked, err := s.accounts.UnlockExpiredSuspension(ctx, accountID, now)
	if err == nil {
		s.audit.Record(ctx, models.AuditActionAccountUnlocked, accountID, map[string]any{
			"status": string(unlocked.Status),
		})
		return unlocked, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to clear expired lock", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// A concurrent login already released the lock
	current, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to reload account", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return current, nil
}

// deactivate marks a stale account inactive. Accounts demoted by an expired
// lock are stale too, so the non-active path skips the status guard.
func (s *AuthService) deactivate(ctx context.Context, account *models.Account, cutoff, now time.Time) error {
	transitioned := false
	if account.Status == models.StatusActive {
		updated, err := s.accounts.DeactivateStale(ctx, cutoff, account.ID, now)
		if err != nil {
			s.logger.Error("failed to deactivate stale account", slog.String("account_id", account.ID), slog.Any("error", err))
			return models.ErrInternalServer
		}
		transitioned = len(updated) > 0
	} else {
		_, err := s.accounts.MarkInactive(ctx, account.ID, cutoff, now)
		switch {
		case err == nil:
			transitioned = true
		case !errors.Is(err, models.ErrNotFound):
			s.logger.Error("failed to deactivate stale account", slog.String("account_id", account.ID), slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	if transitioned {
		s.audit.Record(ctx, models.AuditActionAccountInactive, account.ID, map[string]any{
			"source":      "login",
			"prev_status": string(account.Status),
		})
	}
	return nil
}

func (s *AuthService) recordFailedLogin(ctx context.Context, account *models.Account, meta models.SessionMeta, now time.Time) {
	lockUntil := now.Add(s.policy.LockoutDuration)

	updated, err := s.accounts.RecordFailedLogin(ctx, account.ID, s.policy.MaxLoginAttempts, lockUntil, now)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to record failed login", slog.String("account_id", account.ID), slog.Any("error", err))
		}
		return
	}

	s.logger.Info("login failed: invalid credentials", slog.String("account_id", account.ID))
	s.audit.Record(ctx, models.AuditActionFailedLogin, account.ID, map[string]any{
		"reason": "invalid_password",
		"ip":     meta.IPAddress,
	})

	if updated.Status == models.StatusSuspended {
		s.audit.Record(ctx, models.AuditActionAccountLocked, account.ID, map[string]any{
			"locked_until": lockUntil.UTC().Format(time.RFC3339),
		})
		s.notifier.Enqueue(notify.Notification{
			Kind:      notify.KindSuspended,
			To:        account.Email,
			Name:      account.FullName,
			ExpiresAt: lockUntil,
		})
	}
}

func (s *AuthService) completeLogin(ctx context.Context, account *models.Account, meta models.SessionMeta, now time.Time) (*LoginResult, error) {
	pair, err := s.tokens.Issue(account.ID)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	session := newSession(account.ID, pair, meta, now)
	err = s.sessions.CompleteLogin(ctx, session, pkgauth.HashToken(pair.RefreshToken), pair.RefreshExpiresAt, now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Status changed between the checks and the write
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to complete login", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account.LoginAttempts = 0
	account.LockedUntil = nil
	account.LastLoginAt = &now

	s.notifier.Enqueue(notify.Notification{
		Kind: notify.KindLogin,
		To:   account.Email,
		Name: account.FullName,
		Details: map[string]string{
			"ip_address": meta.IPAddress,
			"device":     meta.DeviceInfo,
		},
	})
	s.audit.Record(ctx, models.AuditActionLogin, account.ID, map[string]any{
		"ip":         meta.IPAddress,
		"session_id": session.ID,
	})
	s.logger.Info("account logged in", slog.String("account_id", account.ID))

	return &LoginResult{Tokens: pair, Account: account}, nil
}

func newSession(accountID string, pair *models.TokenPair, meta models.SessionMeta, now time.Time) *models.Session {
	return &models.Session{
		AccountID:  accountID,
		TokenHash:  pkgauth.HashToken(pair.AccessToken),
		CreatedAt:  now,
		ExpiresAt:  pair.AccessExpiresAt,
		DeviceInfo: meta.DeviceInfo,
		IPAddress:  meta.IPAddress,
	}
}

// Refresh rotates the account's refresh chain. A token that is not the live
// one revokes every session of the account.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta models.SessionMeta) (pair *models.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() { endSpan(span, err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, models.ErrTokenInvalid
	}

	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrTokenInvalid
	}
	accountID := claims.AccountID()

	pair, err = s.tokens.Issue(accountID)
	if err != nil {
		s.logger.Error("failed to issue tokens", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	session := newSession(accountID, pair, meta, now)

	err = s.sessions.RotateRefresh(ctx, pkgauth.HashToken(refreshToken), session,
		pkgauth.HashToken(pair.RefreshToken), pair.RefreshExpiresAt, now)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrInvalidOrReusedToken):
		s.audit.Record(ctx, models.AuditActionRefreshTokenReuse, accountID, map[string]any{
			"ip": meta.IPAddress,
		})
		return nil, models.ErrInvalidOrReusedToken
	case errors.Is(err, models.ErrNotFound):
		return nil, models.ErrTokenInvalid
	default:
		s.logger.Error("failed to rotate refresh token", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.AuditActionRefreshToken, accountID, map[string]any{
		"old_sessions_revoked": true,
	})

	return pair, nil
}

// Logout revokes the session of accessToken and ends the refresh chain
func (s *AuthService) Logout(ctx context.Context, accountID, accessToken string) error {
	if err := s.sessions.EndSession(ctx, accountID, pkgauth.HashToken(accessToken), s.now()); err != nil {
		s.logger.Error("failed to end session", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Record(ctx, models.AuditActionLogout, accountID, nil)
	return nil
}

// LogoutAll revokes every session and ends the refresh chain
func (s *AuthService) LogoutAll(ctx context.Context, accountID string) (int64, error) {
	revoked, err := s.sessions.EndAllSessions(ctx, accountID, s.now())
	if err != nil {
		s.logger.Error("failed to end all sessions", slog.String("account_id", accountID), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.AuditActionLogoutAll, accountID, map[string]any{"sessions_revoked": revoked})
	return revoked, nil
}

// ForgotPassword stores a reset token for a known email. The caller's result is
// the same whether or not the email exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" || !s.allow(ctx, limiter.PurposeForgotPassword, email) {
		return nil
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to get account for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := pkgauth.GenerateOpaqueToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	now := s.now()
	expires := now.Add(s.policy.PasswordResetTokenTTL)
	if err := s.accounts.SetPasswordResetToken(ctx, account.ID, pkgauth.HashToken(token), expires, now); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to store reset token", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.notifier.Enqueue(notify.Notification{
		Kind:      notify.KindPasswordReset,
		To:        account.Email,
		Name:      account.FullName,
		Token:     token,
		ExpiresAt: expires,
	})
	s.audit.Record(ctx, models.AuditActionPasswordResetRequest, account.ID, map[string]any{
		"email": pkglogger.SanitizedEmail(account.Email),
	})

	return nil
}

// ResetPassword consumes a reset token, replacing the password and ending the refresh chain
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.ResetPassword")
	defer func() { endSpan(span, err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return models.ErrTokenInvalid
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	account, err := s.accounts.ConsumePasswordResetToken(ctx, pkgauth.HashToken(token), hash, s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTokenInvalid
		}
		s.logger.Error("failed to consume reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.notifier.Enqueue(notify.Notification{Kind: notify.KindPasswordChanged, To: account.Email, Name: account.FullName})
	s.audit.Record(ctx, models.AuditActionPasswordReset, account.ID, nil)

	return nil
}

// ChangePassword replaces the password after checking the current one.
// Sessions and the refresh chain are left alone.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.hasher.Compare(account.PasswordHash, currentPassword); err != nil {
		return models.ErrCurrentPasswordIncorrect
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.accounts.UpdatePassword(ctx, accountID, hash, s.now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to update password", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.notifier.Enqueue(notify.Notification{Kind: notify.KindPasswordChanged, To: account.Email, Name: account.FullName})
	s.audit.Record(ctx, models.AuditActionChangePassword, accountID, nil)

	return nil
}

// DeleteAccount removes the account's sessions and soft-deletes it
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.accounts.SoftDelete(ctx, accountID, s.now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete account", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Record(ctx, models.AuditActionDeleteAccount, accountID, nil)
	s.logger.Info("account deleted", slog.String("account_id", accountID))
	return nil
}

func (s *AuthService) GetProfile(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return account, nil
}
