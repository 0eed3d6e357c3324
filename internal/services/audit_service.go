package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/tally/internal/models"
	pkglogger "github.com/BradenHooton/tally/pkg/logger"
)

// AuditService dual-writes security events: the structured log first, then
// the audit_logs table. A failed table write is logged, never returned.
type AuditService struct {
	repo        AuditStore
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	monitor     *SecurityMonitor
	now         func() time.Time
}

func NewAuditService(repo AuditStore, auditLogger *pkglogger.AuditLogger, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger,
		now:         time.Now,
	}
}

// WithMonitor runs monitor after every persisted entry
func (s *AuditService) WithMonitor(monitor *SecurityMonitor) *AuditService {
	s.monitor = monitor
	return s
}

func (s *AuditService) WithClock(now func() time.Time) *AuditService {
	s.now = now
	return s
}

// Record writes one audit entry. accountID may be empty for anonymous events.
func (s *AuditService) Record(ctx context.Context, action, accountID string, details map[string]any) {
	s.auditLogger.Log(ctx, action, accountID, details)

	entry := &models.AuditEntry{
		CreatedAt: s.now(),
		Action:    action,
		Details:   models.AuditDetails(details),
	}
	if accountID != "" {
		entry.AccountID = &accountID
	}

	if _, err := s.repo.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit entry",
			slog.String("action", action),
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return
	}

	if s.monitor != nil && accountID != "" {
		s.monitor.Observe(ctx, action, accountID)
	}
}
