package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/tally/internal/models"
	"github.com/BradenHooton/tally/internal/notify"
	"github.com/BradenHooton/tally/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LifecyclePolicy holds the inactivity windows applied by the batch jobs
type LifecyclePolicy struct {
	WarningAfter     time.Duration // warn once last login is older than this
	InactivityWindow time.Duration // deactivate once last login is older than this
	DeletionGrace    time.Duration // delete inactive accounts untouched for this long
}

// ReconciliationService holds the scheduled account lifecycle sweeps. Every
// sweep is a conditional update, so overlapping or repeated runs are no-ops.
type ReconciliationService struct {
	accounts AccountStore
	sessions SessionStore
	notifier notify.Enqueuer
	audit    *AuditService
	policy   LifecyclePolicy
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewReconciliationService(
	accounts AccountStore,
	sessions SessionStore,
	notifier notify.Enqueuer,
	audit *AuditService,
	policy LifecyclePolicy,
	logger *slog.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		accounts: accounts,
		sessions: sessions,
		notifier: notifier,
		audit:    audit,
		policy:   policy,
		logger:   logger,
		tracer:   telemetry.Tracer(),
		now:      time.Now,
	}
}

func (s *ReconciliationService) WithClock(now func() time.Time) *ReconciliationService {
	s.now = now
	return s
}

// WarnInactive notifies active accounts whose last login lies strictly inside
// the warning band. No state changes.
func (s *ReconciliationService) WarnInactive(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "Reconciliation.WarnInactive")
	defer span.End()

	now := s.now()
	accounts, err := s.accounts.ListInactivityWarnings(ctx,
		now.Add(-s.policy.InactivityWindow),
		now.Add(-s.policy.WarningAfter),
	)
	if err != nil {
		return 0, fmt.Errorf("list inactivity warnings: %w", err)
	}

	for _, account := range accounts {
		s.notifier.Enqueue(notify.Notification{
			Kind:      notify.KindInactivityWarning,
			To:        account.Email,
			Name:      account.FullName,
			ExpiresAt: account.LastLoginAt.Add(s.policy.InactivityWindow),
			Details: map[string]string{
				"last_login_at": account.LastLoginAt.UTC().Format(time.RFC1123),
			},
		})
	}

	span.SetAttributes(attribute.Int("accounts.warned", len(accounts)))
	return int64(len(accounts)), nil
}

// SweepInactive deactivates active accounts past the inactivity window
func (s *ReconciliationService) SweepInactive(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "Reconciliation.SweepInactive")
	defer span.End()

	now := s.now()
	accounts, err := s.accounts.DeactivateStale(ctx, now.Add(-s.policy.InactivityWindow), "", now)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale accounts: %w", err)
	}

	for _, account := range accounts {
		s.audit.Record(ctx, models.AuditActionAccountInactive, account.ID, map[string]any{"source": "sweep"})
	}

	span.SetAttributes(attribute.Int("accounts.deactivated", len(accounts)))
	return int64(len(accounts)), nil
}

// SweepDeletions soft-deletes inactive accounts past the grace period and
// sends the final notice only for accounts this run transitioned
func (s *ReconciliationService) SweepDeletions(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "Reconciliation.SweepDeletions")
	defer span.End()

	now := s.now()
	accounts, err := s.accounts.MarkDeletedForInactivity(ctx, now.Add(-s.policy.DeletionGrace), now)
	if err != nil {
		return 0, fmt.Errorf("mark inactive accounts deleted: %w", err)
	}

	for _, account := range accounts {
		s.notifier.Enqueue(notify.Notification{
			Kind: notify.KindAccountDeleted,
			To:   account.Email,
			Name: account.FullName,
		})
		s.audit.Record(ctx, models.AuditActionInactivityDeletion, account.ID, nil)
	}

	span.SetAttributes(attribute.Int("accounts.deleted", len(accounts)))
	return int64(len(accounts)), nil
}

// CleanupSessions removes expired and revoked sessions
func (s *ReconciliationService) CleanupSessions(ctx context.Context) (int64, error) {
	deleted, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return deleted, nil
}
