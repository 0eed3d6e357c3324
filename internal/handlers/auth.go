package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/tally/internal/auth"
	"github.com/BradenHooton/tally/internal/models"
	"github.com/BradenHooton/tally/internal/services"
	pkgauth "github.com/BradenHooton/tally/pkg/auth"
	pkghttp "github.com/BradenHooton/tally/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, fullName, email, password string) (*models.Account, error)
	VerifyEmail(ctx context.Context, token string) (*models.Account, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, meta models.SessionMeta) (*models.TokenPair, error)
	Logout(ctx context.Context, accountID, accessToken string) error
	LogoutAll(ctx context.Context, accountID string) (int64, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error
	DeleteAccount(ctx context.Context, accountID string) error
	GetProfile(ctx context.Context, accountID string) (*models.Account, error)
}

// Generic bodies that must not depend on whether the email exists
const (
	forgotPasswordMessage     = "If an account with that email exists, a password reset link has been sent."
	resendVerificationMessage = "If an unverified account with that email exists, a verification email has been sent."
)

const (
	weakPasswordMessage    = "Password must be at least 8 characters long and include uppercase, lowercase, number, and special character."
	weakNewPasswordMessage = "New password must be at least 8 characters long and include uppercase, lowercase, number, and special character."
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request DTOs

type RegisterRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// EmailRequest is the body of resend-verification and forgot-password
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// Response DTOs

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterResponse struct {
	Message string                    `json:"message"`
	User    *services.AccountResponse `json:"user"`
}

type VerifyEmailResponse struct {
	Message         string     `json:"message"`
	Status          string     `json:"status"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt"`
}

type LoginResponse struct {
	Message      string                    `json:"message"`
	AccessToken  string                    `json:"accessToken"`
	RefreshToken string                    `json:"refreshToken"`
	User         *services.AccountResponse `json:"user"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LogoutAllResponse struct {
	Message         string `json:"message"`
	SessionsRevoked int64  `json:"sessionsRevoked"`
}

// decodeRequest reads and validates a JSON body, writing the 400 itself on failure
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return false
	}
	return true
}

func (h *AuthHandler) sessionMeta(r *http.Request) models.SessionMeta {
	return models.SessionMeta{
		DeviceInfo: pkghttp.UserAgent(r),
		IPAddress:  pkghttp.ExtractClientIP(r, h.ipConfig),
	}
}

// Register handles account registration
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	account, err := h.service.Register(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		var pwErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &pwErr):
			pkghttp.WriteError(w, http.StatusBadRequest, "validation_error", weakPasswordMessage)
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteBadRequest(w, "Email already in use. Please use another one.")
		default:
			writeServiceError(w, r, h.logger, err)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Please check your email to verify your account.",
		User:    services.NewAccountResponse(account),
	})
}

// VerifyEmail consumes the verification token in the path
// @Router /auth/verify-email/{token} [get]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if errors.Is(err, models.ErrTokenInvalid) {
			pkghttp.WriteError(w, http.StatusBadRequest, "token_invalid", "Invalid or expired verification token.")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, VerifyEmailResponse{
		Message:         "Email verified successfully. You can now log in.",
		Status:          string(account.Status),
		EmailVerifiedAt: account.EmailVerifiedAt,
	})
}

// ResendVerification always answers with the same generic body
// @Router /auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		h.logger.ErrorContext(r.Context(), "resend verification failed", slog.Any("error", err))
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: resendVerificationMessage})
}

// Login handles credential login
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     h.sessionMeta(r),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Message:      "Login successful",
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		User:         services.NewAccountResponse(result.Account),
	})
}

// RefreshToken rotates the refresh chain
// @Router /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		pkghttp.WriteUnauthorized(w, "Refresh token is required")
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken, h.sessionMeta(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout ends the caller's session and refresh chain
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.Logout(r.Context(), principal.Account.ID, principal.Token); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// LogoutAll ends every session of the caller
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	revoked, err := h.service.LogoutAll(r.Context(), principal.Account.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LogoutAllResponse{
		Message:         "Logged out from all devices successfully",
		SessionsRevoked: revoked,
	})
}

// ForgotPassword answers with a byte-identical body whether or not the email exists
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.logger.ErrorContext(r.Context(), "forgot password failed", slog.Any("error", err))
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: forgotPasswordMessage})
}

// ResetPassword consumes a reset token and sets the new password
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		var pwErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &pwErr):
			pkghttp.WriteError(w, http.StatusBadRequest, "validation_error", weakPasswordMessage)
		case errors.Is(err, models.ErrTokenInvalid):
			pkghttp.WriteError(w, http.StatusBadRequest, "token_invalid", "Invalid or expired reset token")
		default:
			writeServiceError(w, r, h.logger, err)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{
		Message: "Password reset successfully. Please log in with your new password.",
	})
}

// ChangePassword replaces the caller's password
// @Router /auth/change-password [put]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), principal.Account.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var pwErr *pkgauth.PasswordValidationError
		if errors.As(err, &pwErr) {
			pkghttp.WriteError(w, http.StatusBadRequest, "validation_error", weakNewPasswordMessage)
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

// DeleteAccount soft-deletes the caller's account
// @Router /auth/delete-account [delete]
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.DeleteAccount(r.Context(), principal.Account.ID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Account deleted successfully."})
}

// GetUser returns the caller's profile
// @Router /auth/getUser [get]
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	account, err := h.service.GetProfile(r.Context(), principal.Account.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, services.NewAccountResponse(account))
}
