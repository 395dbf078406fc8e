package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"greenpoints/internal/domain"
)

// AuditLogRepository persists audit trail entries
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

type auditLogRepository struct {
	db DBTX
}

// NewAuditLogRepository creates a new instance of AuditLogRepository
func NewAuditLogRepository(db *sql.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Create inserts an audit log entry using parameterized queries
func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		metadata,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}
