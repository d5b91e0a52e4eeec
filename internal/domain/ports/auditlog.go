package ports

import (
	"context"

	"github.com/ersonp/raices-core/internal/domain/entities"
)

// AuditLog records applied edits.
type AuditLog interface {
	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, action string, personID string, details map[string]any) error

	// FindAuditLog finds audit log entries for a specific person.
	FindAuditLog(ctx context.Context, personID string) ([]entities.AuditEntry, error)

	// FindAuditLogByAction finds audit log entries by action type.
	FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error)
}
