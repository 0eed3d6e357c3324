package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/BradenHooton/tally/internal/models"
	"github.com/BradenHooton/tally/internal/notify"
)

// monitorWindow is the lookback for suspicious activity counts
const monitorWindow = time.Hour

// alertThresholds maps watched audit actions to the count that raises an alert
var alertThresholds = map[string]int64{
	models.AuditActionFailedLogin:          5,
	models.AuditActionPasswordResetRequest: 3,
}

// SecurityMonitor alerts the administrator about bursts of failed logins or
// password reset requests against one account.
type SecurityMonitor struct {
	counter    AuditStore
	notifier   notify.Enqueuer
	adminEmail string
	logger     *slog.Logger
	now        func() time.Time
}

// NewSecurityMonitor returns nil when adminEmail is empty, which disables alerts
func NewSecurityMonitor(counter AuditStore, notifier notify.Enqueuer, adminEmail string, logger *slog.Logger) *SecurityMonitor {
	if adminEmail == "" {
		return nil
	}
	return &SecurityMonitor{
		counter:    counter,
		notifier:   notifier,
		adminEmail: adminEmail,
		logger:     logger,
		now:        time.Now,
	}
}

func (m *SecurityMonitor) WithClock(now func() time.Time) *SecurityMonitor {
	m.now = now
	return m
}

// Observe checks the recent count of action for accountID and enqueues an alert
// once the threshold is reached
func (m *SecurityMonitor) Observe(ctx context.Context, action, accountID string) {
	if m == nil {
		return
	}
	threshold, watched := alertThresholds[action]
	if !watched {
		return
	}

	count, err := m.counter.CountRecent(ctx, accountID, action, m.now().Add(-monitorWindow))
	if err != nil {
		m.logger.ErrorContext(ctx, "security monitor count failed",
			slog.String("action", action),
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return
	}
	if count < threshold {
		return
	}

	m.logger.WarnContext(ctx, "suspicious activity detected",
		slog.String("action", action),
		slog.String("account_id", accountID),
		slog.Int64("count", count),
	)
	m.notifier.Enqueue(notify.Notification{
		Kind: notify.KindSecurityAlert,
		To:   m.adminEmail,
		Details: map[string]string{
			"account_id": accountID,
			"action":     action,
			"count":      strconv.FormatInt(count, 10),
			"window":     monitorWindow.String(),
		},
	})
}
