package logger

import (
	"context"
	"log/slog"
	"sort"
)

// AuditLogger mirrors security audit entries into the structured log
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.With(slog.String("audit_type", "security"))}
}

// failureActions are logged at warn level
var failureActions = map[string]bool{
	"FAILED_LOGIN":        true,
	"ACCOUNT_LOCKED":      true,
	"ACCOUNT_SUSPENDED":   true,
	"REFRESH_TOKEN_REUSE": true,
}

// Log writes one audit event. Detail keys are emitted in sorted order.
func (al *AuditLogger) Log(ctx context.Context, action, accountID string, details map[string]any) {
	attrs := make([]slog.Attr, 0, len(details)+2)
	attrs = append(attrs, slog.String("action", action))
	if accountID != "" {
		attrs = append(attrs, slog.String("account_id", accountID))
	}

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, details[k]))
	}

	level := slog.LevelInfo
	if failureActions[action] {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
