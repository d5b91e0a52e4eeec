package services

import (
	"context"
	"fmt"

	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/domain/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fix actions reported by the reconciler.
const (
	FixAddMirror     = "add_mirror"
	FixSyncStatus    = "sync_status"
	FixDropDuplicate = "drop_duplicate"
	FixDropDangling  = "drop_dangling"
	FixDropSelf      = "drop_self"
)

// Fix is one change the reconciler makes to a person record.
type Fix struct {
	PersonID     string                `json:"personId"`
	Action       string                `json:"action"`
	Relationship entities.Relationship `json:"relationship"`
}

// RepairReport is the outcome of a reconciliation pass.
type RepairReport struct {
	Checked int               `json:"checked"`
	Fixes   []Fix             `json:"fixes"`
	Changed []entities.Person `json:"-"`
	DryRun  bool              `json:"dryRun"`
}

// RepairOptions tunes Plan.
type RepairOptions struct {
	// PruneDangling drops links to people missing from the snapshot.
	PruneDangling bool
}

type planner struct {
	people  []*entities.Person
	byID    map[string]*entities.Person
	changed map[string]bool
	fixes   []Fix
}

// Plan computes the records that must change for every link to be mirrored.
// It does not touch people.
func Plan(people []entities.Person, opts RepairOptions) RepairReport {
	p := &planner{
		byID:    make(map[string]*entities.Person, len(people)),
		changed: make(map[string]bool),
	}
	for i := range people {
		c := people[i].Clone()
		p.people = append(p.people, c)
		p.byID[c.ID] = c
	}

	for _, person := range p.people {
		p.clean(person, opts)
	}
	for _, person := range p.people {
		// The list grows while mirrors are added to other people only.
		for _, rel := range person.Relationships {
			if other := p.byID[rel.PersonID]; other != nil {
				p.mirror(person, other, rel)
			}
		}
	}

	report := RepairReport{Checked: len(people), Fixes: p.fixes}
	for _, person := range p.people {
		if p.changed[person.ID] {
			report.Changed = append(report.Changed, *person)
		}
	}
	return report
}

func (p *planner) note(person *entities.Person, action string, rel entities.Relationship) {
	p.changed[person.ID] = true
	p.fixes = append(p.fixes, Fix{PersonID: person.ID, Action: action, Relationship: rel})
}

// clean drops self links, duplicate (type, personId) pairs and, when asked,
// links to missing people.
func (p *planner) clean(person *entities.Person, opts RepairOptions) {
	seen := make(map[string]bool, len(person.Relationships))
	kept := make([]entities.Relationship, 0, len(person.Relationships))
	for _, rel := range person.Relationships {
		key := string(rel.Type) + "|" + rel.PersonID
		switch {
		case rel.PersonID == person.ID:
			p.note(person, FixDropSelf, rel)
		case seen[key]:
			p.note(person, FixDropDuplicate, rel)
		case opts.PruneDangling && p.byID[rel.PersonID] == nil:
			p.note(person, FixDropDangling, rel)
		default:
			seen[key] = true
			kept = append(kept, rel)
		}
	}
	person.Relationships = kept
}

func (p *planner) mirror(owner, other *entities.Person, rel entities.Relationship) {
	switch {
	case rel.Type == entities.RelationSpouse:
		p.syncSpouse(owner, other, rel)
	case rel.Type.Valid():
		want := entities.MirrorType(rel.Type, owner.Gender)
		if other.FindRelationship(owner.ID, entities.KindOf(want).Types()...) < 0 {
			p.append(other, owner.ID, want, "")
		}
	}
}

// syncSpouse makes both sides hold SPOUSE with the canonical source's status.
func (p *planner) syncSpouse(owner, other *entities.Person, rel entities.Relationship) {
	idx := other.FindRelationship(owner.ID, entities.RelationSpouse)
	if idx < 0 {
		p.append(other, owner.ID, entities.RelationSpouse, rel.Status.OrCurrent())
		return
	}
	lo, _ := entities.SpousePair(owner.ID, other.ID)
	if owner.ID != lo {
		// Visited again from the canonical side.
		return
	}
	want := rel.Status.OrCurrent()
	mirror := &other.Relationships[idx]
	if mirror.Status.OrCurrent() != want {
		mirror.Status = want
		p.note(other, FixSyncStatus, *mirror)
	}
}

func (p *planner) append(person *entities.Person, otherID string, t entities.RelationType, status entities.RelationStatus) {
	rel := entities.Relationship{ID: uuid.NewString(), PersonID: otherID, Type: t, Status: status}
	person.Relationships = append(person.Relationships, rel)
	p.note(person, FixAddMirror, rel)
}

// Reconciler heals mirror violations left behind by partially applied edits.
type Reconciler struct {
	store       ports.PersonStore
	mutator     *Mutator
	audit       ports.AuditLog
	logger      *zap.Logger
	concurrency int
	opts        RepairOptions
}

// NewReconciler creates a Reconciler. Writes take the mutator's per-person
// lock. concurrency bounds parallel writes; values below 1 mean 1.
func NewReconciler(
	store ports.PersonStore,
	mutator *Mutator,
	audit ports.AuditLog,
	logger *zap.Logger,
	concurrency int,
	opts RepairOptions,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{
		store:       store,
		mutator:     mutator,
		audit:       audit,
		logger:      logger,
		concurrency: concurrency,
		opts:        opts,
	}
}

// Heal loads every person, plans the repair and, unless dryRun, persists
// the changed records.
func (r *Reconciler) Heal(ctx context.Context, dryRun bool) (*RepairReport, error) {
	people, err := r.store.ListPeople(ctx)
	if err != nil {
		return nil, asStorage("list people", err)
	}

	report := Plan(people, r.opts)
	report.DryRun = dryRun
	if dryRun || len(report.Changed) == 0 {
		return &report, nil
	}

	byPerson := make(map[string][]Fix, len(report.Changed))
	for _, f := range report.Fixes {
		byPerson[f.PersonID] = append(byPerson[f.PersonID], f)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range report.Changed {
		person := &report.Changed[i]
		fixes := byPerson[person.ID]
		g.Go(func() error {
			return r.persist(gctx, person, fixes)
		})
	}
	if err := g.Wait(); err != nil {
		return &report, err
	}

	r.logger.Info("repair complete",
		zap.Int("checked", report.Checked),
		zap.Int("fixes", len(report.Fixes)),
		zap.Int("changed", len(report.Changed)))
	return &report, nil
}

// persist re-reads the person under the mutator lock and applies fixes to
// the fresh record, so link edits made after the snapshot are kept. On
// return person holds what the store has.
func (r *Reconciler) persist(ctx context.Context, person *entities.Person, fixes []Fix) error {
	var written bool
	write := func() error {
		fresh, err := r.store.GetPerson(ctx, person.ID)
		if err != nil {
			return asStorage(fmt.Sprintf("get person %s", person.ID), err)
		}
		if fresh == nil {
			// Deleted since the snapshot.
			return nil
		}
		if !applyFixes(fresh, fixes) {
			*person = *fresh
			return nil
		}
		fresh.UpdatedAt = timeNow()
		if err := r.store.PutPerson(ctx, fresh); err != nil {
			return asStorage(fmt.Sprintf("put person %s", person.ID), err)
		}
		*person = *fresh
		written = true
		return nil
	}
	var err error
	if r.mutator != nil {
		err = r.mutator.Locked(person.ID, write)
	} else {
		err = write()
	}
	if err != nil || !written {
		return err
	}
	if r.audit != nil {
		if aerr := r.audit.LogAction(ctx, entities.AuditRepairHeal, person.ID, nil); aerr != nil {
			r.logger.Warn("audit log write failed", zap.String("person_id", person.ID), zap.Error(aerr))
		}
	}
	return nil
}

// applyFixes replays planned fixes on p and reports whether it changed.
// Each fix is checked against p's current links, so one that no longer
// applies is skipped.
func applyFixes(p *entities.Person, fixes []Fix) bool {
	drop := make(map[string]bool)
	for _, f := range fixes {
		switch f.Action {
		case FixDropDuplicate, FixDropDangling, FixDropSelf:
			drop[f.Action+"|"+string(f.Relationship.Type)+"|"+f.Relationship.PersonID] = true
		}
	}

	changed := false
	if len(drop) > 0 {
		seen := make(map[string]bool, len(p.Relationships))
		kept := make([]entities.Relationship, 0, len(p.Relationships))
		for _, rel := range p.Relationships {
			key := string(rel.Type) + "|" + rel.PersonID
			switch {
			case rel.PersonID == p.ID && drop[FixDropSelf+"|"+key],
				seen[key] && drop[FixDropDuplicate+"|"+key],
				drop[FixDropDangling+"|"+key]:
				changed = true
			default:
				seen[key] = true
				kept = append(kept, rel)
			}
		}
		p.Relationships = kept
	}

	for _, f := range fixes {
		rel := f.Relationship
		switch f.Action {
		case FixAddMirror:
			if p.FindRelationship(rel.PersonID, entities.KindOf(rel.Type).Types()...) < 0 {
				p.Relationships = append(p.Relationships, rel)
				changed = true
			}
		case FixSyncStatus:
			i := p.FindRelationship(rel.PersonID, entities.RelationSpouse)
			if i >= 0 && p.Relationships[i].Status.OrCurrent() != rel.Status.OrCurrent() {
				p.Relationships[i].Status = rel.Status
				changed = true
			}
		}
	}
	return changed
}
