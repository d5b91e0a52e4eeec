package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/ersonp/raices-core/internal/domain/entities"
)

// AuditLog is an in-memory implementation of ports.AuditLog.
type AuditLog struct {
	mu      sync.Mutex
	Entries []entities.AuditEntry
	Err     error
}

// NewAuditLog creates an empty AuditLog.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// LogAction appends an entry.
func (m *AuditLog) LogAction(_ context.Context, action string, personID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Entries = append(m.Entries, entities.AuditEntry{
		ID:        int64(len(m.Entries) + 1),
		Action:    action,
		PersonID:  personID,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

// FindAuditLog returns the entries for personID.
func (m *AuditLog) FindAuditLog(_ context.Context, personID string) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.AuditEntry
	for _, e := range m.Entries {
		if e.PersonID == personID {
			result = append(result, e)
		}
	}
	return result, nil
}

// FindAuditLogByAction returns up to limit entries with the given action.
func (m *AuditLog) FindAuditLogByAction(_ context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []entities.AuditEntry
	for _, e := range m.Entries {
		if e.Action == action {
			result = append(result, e)
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// Actions returns the logged action names in order.
func (m *AuditLog) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Action
	}
	return out
}
