package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/tally/internal/models"
	pkgauth "github.com/BradenHooton/tally/pkg/auth"
	pkghttp "github.com/BradenHooton/tally/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

// PrincipalContextKey is the key for storing the authenticated principal in context
const PrincipalContextKey contextKey = "principal"

// SessionLookup finds live sessions by access token digest
type SessionLookup interface {
	GetLiveByTokenHash(ctx context.Context, digest string, now time.Time) (*models.Session, error)
}

// AccountLookup finds non-deleted accounts by id
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// Principal is the authenticated caller of a request
type Principal struct {
	Account *models.Account
	Session *models.Session
	Token   string
}

// Gateway admits requests carrying a live access token of an active account
type Gateway struct {
	tokens   *TokenManager
	sessions SessionLookup
	accounts AccountLookup
	logger   *slog.Logger
	now      func() time.Time
}

func NewGateway(tokens *TokenManager, sessions SessionLookup, accounts AccountLookup, logger *slog.Logger) *Gateway {
	return &Gateway{
		tokens:   tokens,
		sessions: sessions,
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for session expiry checks
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// Authenticate runs the admission pipeline, stopping at the first failure:
// signature and expiry, access type, live session, live account, active status.
func (g *Gateway) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	claims, err := g.tokens.ValidateAccess(raw)
	if err != nil {
		return nil, err
	}

	session, err := g.sessions.GetLiveByTokenHash(ctx, pkgauth.HashToken(raw), g.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSessionInvalid
		}
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if session.AccountID != claims.AccountID() {
		return nil, models.ErrSessionInvalid
	}

	account, err := g.accounts.GetByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	if account.Status != models.StatusActive {
		return nil, models.NewVerificationRequired(account.Status)
	}

	return &Principal{Account: account, Session: session, Token: raw}, nil
}

// Protect rejects requests that fail Authenticate
func (g *Gateway) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := pkghttp.BearerToken(r)
		if !ok {
			pkghttp.WriteUnauthorized(w, "Not authorized, no token")
			return
		}

		principal, err := g.Authenticate(r.Context(), raw)
		if err != nil {
			g.writeAuthError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// OptionalAuth attaches the principal when authentication succeeds and
// otherwise continues anonymously
func (g *Gateway) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw, ok := pkghttp.BearerToken(r); ok {
			if principal, err := g.Authenticate(r.Context(), raw); err == nil {
				r = r.WithContext(WithPrincipal(r.Context(), principal))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var statusErr *models.AccountStatusError

	switch {
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteErrorResponse(w, http.StatusUnauthorized, pkghttp.ErrorResponse{
			Error: "token_expired", Message: "Token expired", Expired: true,
		})
	case errors.Is(err, models.ErrTokenInvalid):
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_invalid", "Not authorized, token failed")
	case errors.Is(err, models.ErrSessionInvalid):
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_invalid", "Session expired or revoked")
	case errors.Is(err, models.ErrAuthenticationFailed):
		pkghttp.WriteUnauthorized(w, "Not authorized, user not found")
	case errors.As(err, &statusErr):
		pkghttp.WriteErrorResponse(w, http.StatusForbidden, pkghttp.ErrorResponse{
			Error:             "verification_required",
			Message:           "Email verification required",
			Status:            string(statusErr.Status),
			NeedsVerification: true,
		})
	default:
		g.logger.ErrorContext(r.Context(), "authentication failed", slog.String("error", err.Error()))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFromContext extracts the authenticated principal, if any
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	return p, ok && p != nil
}
