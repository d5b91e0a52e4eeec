package entities

import "time"

// Audit actions written by the mutator and the reconciler.
const (
	AuditLinkAdd      = "link.add"
	AuditLinkRemove   = "link.remove"
	AuditLinkUpdate   = "link.update"
	AuditPersonSave   = "person.save"
	AuditPersonDelete = "person.delete"
	AuditRepairHeal   = "repair.heal"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	PersonID  string         `json:"person_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
