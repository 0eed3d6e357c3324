package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/tally/internal/models"
)

// SessionInfo is a live session as shown to its owner
type SessionInfo struct {
	Session *models.Session
	Current bool
}

// SessionService lets an account inspect and revoke its own sessions
type SessionService struct {
	sessions SessionStore
	audit    *AuditService
	logger   *slog.Logger
	now      func() time.Time
}

func NewSessionService(sessions SessionStore, audit *AuditService, logger *slog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// List returns the live sessions of accountID, flagging currentSessionID
func (s *SessionService) List(ctx context.Context, accountID, currentSessionID string) ([]SessionInfo, error) {
	sessions, err := s.sessions.ListLive(ctx, accountID, s.now())
	if err != nil {
		s.logger.Error("failed to list sessions", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, SessionInfo{Session: session, Current: session.ID == currentSessionID})
	}
	return infos, nil
}

// Revoke revokes one of the account's sessions. Unknown or foreign ids yield models.ErrNotFound.
func (s *SessionService) Revoke(ctx context.Context, accountID, sessionID string) error {
	if err := s.sessions.Revoke(ctx, accountID, sessionID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to revoke session", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Record(ctx, models.AuditActionSessionRevoked, accountID, map[string]any{"session_id": sessionID})
	return nil
}

// RevokeAll revokes every live session; the refresh chain stays usable
func (s *SessionService) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	revoked, err := s.sessions.RevokeAll(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to revoke sessions", slog.String("account_id", accountID), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.AuditActionSessionsRevokedAll, accountID, map[string]any{"sessions_revoked": revoked})
	return revoked, nil
}
