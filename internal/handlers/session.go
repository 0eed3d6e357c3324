package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/tally/internal/auth"
	"github.com/BradenHooton/tally/internal/services"
	pkghttp "github.com/BradenHooton/tally/pkg/http"
)

// SessionServiceInterface defines the session management operations
type SessionServiceInterface interface {
	List(ctx context.Context, accountID, currentSessionID string) ([]services.SessionInfo, error)
	Revoke(ctx context.Context, accountID, sessionID string) error
	RevokeAll(ctx context.Context, accountID string) (int64, error)
}

// SessionHandler lets an authenticated account manage its own sessions
type SessionHandler struct {
	service SessionServiceInterface
	logger  *slog.Logger
}

func NewSessionHandler(service SessionServiceInterface, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

type RevokeSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,uuid"`
}

type SessionResponse struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	DeviceInfo string    `json:"deviceInfo"`
	IPAddress  string    `json:"ipAddress"`
	Current    bool      `json:"current"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// List returns the caller's live sessions
// @Router /session/list [get]
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	infos, err := h.service.List(r.Context(), principal.Account.ID, principal.Session.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionResponse, 0, len(infos))}
	for _, info := range infos {
		resp.Sessions = append(resp.Sessions, SessionResponse{
			ID:         info.Session.ID,
			CreatedAt:  info.Session.CreatedAt,
			ExpiresAt:  info.Session.ExpiresAt,
			DeviceInfo: info.Session.DeviceInfo,
			IPAddress:  info.Session.IPAddress,
			Current:    info.Current,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Revoke revokes one of the caller's sessions
// @Router /session/revoke [post]
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req RevokeSessionRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.service.Revoke(r.Context(), principal.Account.ID, req.SessionID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Session revoked successfully"})
}

// RevokeAll revokes every session of the caller. The refresh token stays valid.
// @Router /session/revoke-all [post]
func (h *SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	revoked, err := h.service.RevokeAll(r.Context(), principal.Account.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LogoutAllResponse{
		Message:         "All sessions revoked successfully",
		SessionsRevoked: revoked,
	})
}
