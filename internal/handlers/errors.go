package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/tally/internal/models"
	pkghttp "github.com/BradenHooton/tally/pkg/http"
)

// writeServiceError maps service errors onto JSON error responses. Endpoints
// where a token error means bad input (verify, reset) handle it before calling this.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		locked    *models.LockedError
		statusErr *models.AccountStatusError
	)

	switch {
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteError(w, http.StatusBadRequest, "validation_error", "All fields are required")
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.As(err, &locked):
		pkghttp.WriteLocked(w, fmt.Sprintf("Account suspended. Try again in %d minutes.", locked.RemainingMinutes()))
	case errors.As(err, &statusErr) && errors.Is(err, models.ErrInactiveAccount):
		pkghttp.WriteErrorResponse(w, http.StatusForbidden, pkghttp.ErrorResponse{
			Error:   "account_inactive",
			Message: "Account is inactive due to inactivity. Please contact support.",
			Status:  string(statusErr.Status),
		})
	case errors.As(err, &statusErr):
		pkghttp.WriteErrorResponse(w, http.StatusForbidden, pkghttp.ErrorResponse{
			Error:             "verification_required",
			Message:           "Please verify your email before logging in",
			Status:            string(statusErr.Status),
			NeedsVerification: true,
		})
	case errors.Is(err, models.ErrInvalidOrReusedToken):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_or_reused_token",
			"Invalid or reused refresh token. All sessions revoked.")
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteErrorResponse(w, http.StatusUnauthorized, pkghttp.ErrorResponse{
			Error: "token_expired", Message: "Token expired", Expired: true,
		})
	case errors.Is(err, models.ErrTokenInvalid):
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_invalid", "Invalid refresh token")
	case errors.Is(err, models.ErrSessionInvalid):
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_invalid", "Session expired or revoked")
	case errors.Is(err, models.ErrAuthenticationFailed):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrCurrentPasswordIncorrect):
		pkghttp.WriteError(w, http.StatusBadRequest, "current_password_incorrect", "Current password is incorrect")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Not found")
	default:
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
