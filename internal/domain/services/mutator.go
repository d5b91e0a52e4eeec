package services

import (
	"context"
	"strings"
	"time"

	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/domain/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// timeNow is the clock used for updatedAt, replaceable in tests.
var timeNow = time.Now

// Mutator applies single-sided link edits to person records. Callers issue
// the mirror call themselves.
type Mutator struct {
	store  ports.PersonStore
	audit  ports.AuditLog
	logger *zap.Logger
	locks  *keyedLock
	flight singleflight.Group
}

// NewMutator creates a Mutator. audit may be nil.
func NewMutator(store ports.PersonStore, audit ports.AuditLog, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{
		store:  store,
		audit:  audit,
		logger: logger,
		locks:  newKeyedLock(),
	}
}

// ApplyLink applies op for a link of the given kind from ownerID to otherID
// and persists the owner. It reports whether the record changed.
//
// Calls for the same owner run one at a time. Identical calls issued while
// one is in flight share its result.
func (m *Mutator) ApplyLink(
	ctx context.Context,
	ownerID, otherID string,
	op entities.LinkOp,
	kind entities.LinkKind,
	status entities.RelationStatus,
) (bool, error) {
	if err := validateLink(ownerID, otherID, op, kind, status); err != nil {
		return false, err
	}

	key := strings.Join([]string{string(op), ownerID, otherID, string(kind), string(status)}, "|")
	v, err, _ := m.flight.Do(key, func() (any, error) {
		unlock := m.locks.Lock(ownerID)
		defer unlock()
		return m.apply(ctx, ownerID, otherID, op, kind, status)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func validateLink(ownerID, otherID string, op entities.LinkOp, kind entities.LinkKind, status entities.RelationStatus) error {
	if ownerID == "" || otherID == "" {
		return entities.NewValidation("owner and other person ids are required")
	}
	if ownerID == otherID {
		return entities.NewValidation("cannot link %s to itself", ownerID)
	}
	if kind.Types() == nil {
		return entities.NewValidation("invalid link kind: %s", kind)
	}
	if status != "" && !status.Valid() {
		return entities.NewValidation("invalid status: %s", status)
	}
	switch op {
	case entities.OpAdd, entities.OpRemove:
	case entities.OpUpdate:
		if kind != entities.LinkSpouse {
			return entities.NewValidation("update only applies to spouse links, got %s", kind)
		}
		if status == "" {
			return entities.NewValidation("update requires a status")
		}
	default:
		return entities.NewValidation("invalid operation: %s", op)
	}
	return nil
}

func (m *Mutator) apply(
	ctx context.Context,
	ownerID, otherID string,
	op entities.LinkOp,
	kind entities.LinkKind,
	status entities.RelationStatus,
) (bool, error) {
	owner, err := m.store.GetPerson(ctx, ownerID)
	if err != nil {
		return false, asStorage("get person "+ownerID, err)
	}
	if owner == nil {
		return false, entities.NewNotFound(ownerID)
	}

	var (
		changed bool
		action  string
		details = map[string]any{"person_id": otherID, "kind": string(kind)}
	)
	switch op {
	case entities.OpAdd:
		changed, err = m.add(ctx, owner, otherID, kind, status, details)
		action = entities.AuditLinkAdd
	case entities.OpRemove:
		changed = remove(owner, otherID, kind)
		action = entities.AuditLinkRemove
	case entities.OpUpdate:
		changed = update(owner, otherID, status.OrCurrent())
		details["status"] = string(status)
		action = entities.AuditLinkUpdate
	}
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	owner.UpdatedAt = timeNow()
	if err := m.store.PutPerson(ctx, owner); err != nil {
		return false, asStorage("put person "+ownerID, err)
	}
	m.record(ctx, action, ownerID, details)
	return true, nil
}

func (m *Mutator) add(
	ctx context.Context,
	owner *entities.Person,
	otherID string,
	kind entities.LinkKind,
	status entities.RelationStatus,
	details map[string]any,
) (bool, error) {
	if owner.FindRelationship(otherID, kind.Types()...) >= 0 {
		return false, nil
	}

	rel := entities.Relationship{ID: uuid.NewString(), PersonID: otherID}
	switch kind {
	case entities.LinkParent:
		other, err := m.store.GetPerson(ctx, otherID)
		if err != nil {
			return false, asStorage("get person "+otherID, err)
		}
		var gender entities.Gender
		if other != nil {
			gender = other.Gender
		}
		rel.Type = entities.ParentTypeFor(gender)
	case entities.LinkSpouse:
		rel.Type = entities.RelationSpouse
		rel.Status = status.OrCurrent()
	default:
		rel.Type = kind.Types()[0]
	}

	owner.Relationships = append(owner.Relationships, rel)
	details["type"] = string(rel.Type)
	return true, nil
}

func remove(owner *entities.Person, otherID string, kind entities.LinkKind) bool {
	kept := owner.Relationships[:0]
	for _, rel := range owner.Relationships {
		if rel.PersonID == otherID && kind.Matches(rel.Type) {
			continue
		}
		kept = append(kept, rel)
	}
	changed := len(kept) != len(owner.Relationships)
	owner.Relationships = kept
	return changed
}

func update(owner *entities.Person, otherID string, status entities.RelationStatus) bool {
	changed := false
	for i := range owner.Relationships {
		rel := &owner.Relationships[i]
		if rel.PersonID != otherID || rel.Type != entities.RelationSpouse {
			continue
		}
		if rel.Status != status {
			rel.Status = status
			changed = true
		}
	}
	return changed
}

func (m *Mutator) record(ctx context.Context, action, personID string, details map[string]any) {
	if m.audit == nil {
		return
	}
	if err := m.audit.LogAction(ctx, action, personID, details); err != nil {
		m.logger.Warn("audit log write failed",
			zap.String("action", action),
			zap.String("person_id", personID),
			zap.Error(err))
	}
}

// asStorage wraps store failures that are not already domain errors.
func asStorage(operation string, err error) error {
	if entities.TypeOf(err) != "" {
		return err
	}
	return entities.NewStorage(operation, err)
}

// Locked runs fn while holding the per-person lock used by ApplyLink, so
// whole-record writes made by fn cannot interleave with link edits.
func (m *Mutator) Locked(personID string, fn func() error) error {
	unlock := m.locks.Lock(personID)
	defer unlock()
	return fn()
}
