package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/tally/internal/database"
	"github.com/BradenHooton/tally/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLogRepository handles audit log data access. Entries are insert-only.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

func scanAuditEntryRow(row rowScanner) (*models.AuditEntry, error) {
	var entry models.AuditEntry

	err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.Action, &entry.AccountID, &entry.Details)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &entry, nil
}

// Create appends an audit entry
func (r *AuditLogRepository) Create(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_logs (created_at, action, account_id, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, action, account_id, details`

	result, err := scanAuditEntryRow(r.pool.QueryRow(ctx, query,
		entry.CreatedAt, entry.Action, entry.AccountID, entry.Details,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit entry: %w", err)
	}

	return result, nil
}

// CountRecent counts entries with action for the account created at or after since
func (r *AuditLogRepository) CountRecent(ctx context.Context, accountID, action string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM audit_logs
		WHERE account_id = $1 AND action = $2 AND created_at >= $3`

	var count int64
	if err := r.pool.QueryRow(ctx, query, accountID, action, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}
