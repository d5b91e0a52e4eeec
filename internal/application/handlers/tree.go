package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/domain/ports"
	"github.com/ersonp/raices-core/internal/domain/services"
)

var timeNow = time.Now

// Canvas offsets for people created from a gesture.
const (
	parentOffsetY = -200
	childOffsetY  = 200
	spouseOffsetX = 250
)

// Placeholder names given to people created from a gesture.
const (
	placeholderFirst      = "Nuevo"
	placeholderFirstFem   = "Nueva"
	placeholderParentLast = "Padre/Madre"
	placeholderChildLast  = "Hijo/a"
	placeholderSpouseLast = "Pareja"
)

// Connection is a line drawn between two node handles.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Lateral reports whether the connection uses a spouse port.
func (c Connection) Lateral() bool {
	return entities.IsLateralHandle(c.SourceHandle) || entities.IsLateralHandle(c.TargetHandle)
}

// DragEnd describes a connection drag released without a target node.
type DragEnd struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	OnPane       bool   `json:"onPane"`
}

// TreeOptions configures a TreeHandler.
type TreeOptions struct {
	RejectCycles bool   // Refuse lineage edits that make someone their own ancestor
	CreatedBy    string // Recorded on people created by gestures
}

// TreeHandler turns edit gestures into mutator calls and keeps the canvas
// in step.
type TreeHandler struct {
	store      ports.PersonStore
	mutator    *services.Mutator
	reconciler *services.Reconciler
	canvas     *Canvas
	logger     *zap.Logger
	opts       TreeOptions
}

// NewTreeHandler creates a TreeHandler with an empty canvas. reconciler may
// be nil when repair is not offered.
func NewTreeHandler(
	store ports.PersonStore,
	mutator *services.Mutator,
	reconciler *services.Reconciler,
	logger *zap.Logger,
	opts TreeOptions,
) *TreeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeHandler{
		store:      store,
		mutator:    mutator,
		reconciler: reconciler,
		canvas:     NewCanvas(),
		logger:     logger,
		opts:       opts,
	}
}

// Canvas returns the handler's canvas.
func (h *TreeHandler) Canvas() *Canvas {
	return h.canvas
}

// sequence tracks the steps of one multi-call edit.
type sequence struct {
	h       *TreeHandler
	op      string
	applied []string
}

func (h *TreeHandler) begin(op string) *sequence {
	return &sequence{h: h, op: op}
}

func (s *sequence) run(step string, fn func() error) error {
	if err := fn(); err != nil {
		return s.fail(step, err)
	}
	s.applied = append(s.applied, step)
	return nil
}

func (s *sequence) link(
	ctx context.Context,
	ownerID, otherID string,
	op entities.LinkOp,
	kind entities.LinkKind,
	status entities.RelationStatus,
) error {
	step := fmt.Sprintf("%s %s %s->%s", op, kind, ownerID, otherID)
	return s.run(step, func() error {
		_, err := s.h.mutator.ApplyLink(ctx, ownerID, otherID, op, kind, status)
		return err
	})
}

func (s *sequence) put(ctx context.Context, person *entities.Person) error {
	return s.run("put "+person.ID, func() error {
		if err := s.h.store.PutPerson(ctx, person); err != nil {
			return entities.NewStorage("put person "+person.ID, err)
		}
		return nil
	})
}

// fail invalidates the canvas, wraps err when earlier steps already
// landed, and logs.
func (s *sequence) fail(step string, err error) error {
	s.h.canvas.Invalidate()
	if len(s.applied) > 0 {
		err = entities.NewPartialApplication(s.op, s.applied, step, err)
	}
	s.h.logger.Error("edit failed",
		zap.String("operation", s.op),
		zap.String("step", step),
		zap.Strings("applied", s.applied),
		zap.Error(err))
	return err
}

// reject logs a refused gesture. Nothing was changed so the canvas stays valid.
func (h *TreeHandler) reject(op string, err error) error {
	h.logger.Info("edit rejected", zap.String("operation", op), zap.Error(err))
	return err
}

func (h *TreeHandler) load(ctx context.Context, op, id string) (*entities.Person, error) {
	p, err := h.store.GetPerson(ctx, id)
	if err != nil {
		err = entities.NewStorage("get person "+id, err)
		h.logger.Error("edit failed", zap.String("operation", op), zap.Error(err))
		return nil, err
	}
	if p == nil {
		return nil, h.reject(op, entities.NewNotFound(id))
	}
	return p, nil
}

func (h *TreeHandler) newPerson(first, last string, gender entities.Gender, rel entities.Relationship) *entities.Person {
	now := timeNow()
	rel.ID = uuid.NewString()
	return &entities.Person{
		ID:            services.NewPersonID(),
		FirstName:     first,
		LastName:      last,
		Gender:        gender,
		IsLiving:      true,
		Relationships: []entities.Relationship{rel},
		CreatedBy:     h.opts.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func offset(p entities.Position, dx, dy float64) entities.Position {
	return entities.Position{X: p.X + dx, Y: p.Y + dy}
}

// AddParent creates a placeholder parent above childID.
func (h *TreeHandler) AddParent(ctx context.Context, childID string) (*entities.Person, error) {
	const op = "add_parent"
	if _, err := h.load(ctx, op, childID); err != nil {
		return nil, err
	}

	parent := h.newPerson(placeholderFirst, placeholderParentLast, entities.GenderUnknown,
		entities.Relationship{PersonID: childID, Type: entities.RelationChild})

	h.canvas.UpsertNode(entities.NodeFor(parent, offset(h.canvas.PositionOf(childID), 0, parentOffsetY)))
	h.canvas.AddEdge(entities.LineageEdge(parent.ID, childID))

	seq := h.begin(op)
	if err := seq.put(ctx, parent); err != nil {
		return nil, err
	}
	if err := seq.link(ctx, childID, parent.ID, entities.OpAdd, entities.LinkParent, ""); err != nil {
		return nil, err
	}
	return parent, nil
}

// AddChild creates a placeholder child below parentID.
func (h *TreeHandler) AddChild(ctx context.Context, parentID string) (*entities.Person, error) {
	const op = "add_child"
	parent, err := h.load(ctx, op, parentID)
	if err != nil {
		return nil, err
	}

	child := h.newPerson(placeholderFirst, placeholderChildLast, entities.GenderUnknown,
		entities.Relationship{PersonID: parentID, Type: entities.ParentTypeFor(parent.Gender)})

	h.canvas.UpsertNode(entities.NodeFor(child, offset(h.canvas.PositionOf(parentID), 0, childOffsetY)))
	h.canvas.AddEdge(entities.LineageEdge(parentID, child.ID))

	seq := h.begin(op)
	if err := seq.put(ctx, child); err != nil {
		return nil, err
	}
	if err := seq.link(ctx, parentID, child.ID, entities.OpAdd, entities.LinkChild, ""); err != nil {
		return nil, err
	}
	return child, nil
}

// Connect links two people. Lateral handles make a spouse link; otherwise
// the source becomes a parent of the target.
func (h *TreeHandler) Connect(ctx context.Context, conn Connection) (*entities.Edge, error) {
	const op = "connect"
	if conn.Source == "" || conn.Target == "" || conn.Source == conn.Target {
		return nil, h.reject(op, entities.NewValidation("connection needs two distinct people"))
	}
	if conn.Lateral() {
		return h.connectSpouses(ctx, conn.Source, conn.Target)
	}
	return h.connectLineage(ctx, op, conn.Source, conn.Target)
}

func (h *TreeHandler) connectSpouses(ctx context.Context, aID, bID string) (*entities.Edge, error) {
	const op = "connect_spouse"
	a, err := h.load(ctx, op, aID)
	if err != nil {
		return nil, err
	}
	b, err := h.load(ctx, op, bID)
	if err != nil {
		return nil, err
	}
	if a.Gender == b.Gender {
		return nil, h.reject(op, entities.NewValidation("spouses %s and %s share gender %s", aID, bID, a.Gender))
	}

	// An existing link keeps its status on both sides.
	status := spouseStatus(a, b)
	edge := entities.SpouseEdge(aID, bID, status)
	h.canvas.AddEdge(edge)

	seq := h.begin(op)
	if err := seq.link(ctx, aID, bID, entities.OpAdd, entities.LinkSpouse, status); err != nil {
		return nil, err
	}
	if err := seq.link(ctx, bID, aID, entities.OpAdd, entities.LinkSpouse, status); err != nil {
		return nil, err
	}
	return &edge, nil
}

func (h *TreeHandler) connectLineage(ctx context.Context, op, parentID, childID string) (*entities.Edge, error) {
	if err := h.guardCycle(ctx, op, parentID, childID, nil); err != nil {
		return nil, err
	}

	edge := entities.LineageEdge(parentID, childID)
	h.canvas.AddEdge(edge)

	seq := h.begin(op)
	if err := seq.link(ctx, parentID, childID, entities.OpAdd, entities.LinkChild, ""); err != nil {
		return nil, err
	}
	if err := seq.link(ctx, childID, parentID, entities.OpAdd, entities.LinkParent, ""); err != nil {
		return nil, err
	}
	return &edge, nil
}

// guardCycle rejects parentID→childID when it would close a loop. ignore,
// when set, is an existing lineage edge about to be removed.
func (h *TreeHandler) guardCycle(ctx context.Context, op, parentID, childID string, ignore *entities.Edge) error {
	if !h.opts.RejectCycles {
		return nil
	}
	people, err := h.store.ListPeople(ctx)
	if err != nil {
		err = entities.NewStorage("list people", err)
		h.logger.Error("edit failed", zap.String("operation", op), zap.Error(err))
		return err
	}
	if ignore != nil {
		people = withoutLineage(people, ignore.Source, ignore.Target)
	}
	if services.WouldCreateCycle(people, parentID, childID) {
		return h.reject(op, entities.NewValidation("%s is already a descendant of %s", parentID, childID))
	}
	return nil
}

// withoutLineage drops both records of parentID→childID from a snapshot.
func withoutLineage(people []entities.Person, parentID, childID string) []entities.Person {
	out := make([]entities.Person, len(people))
	for i := range people {
		p := people[i].Clone()
		kept := p.Relationships[:0]
		for _, rel := range p.Relationships {
			if p.ID == parentID && rel.PersonID == childID && rel.Type == entities.RelationChild {
				continue
			}
			if p.ID == childID && rel.PersonID == parentID && rel.Type.IsParent() {
				continue
			}
			kept = append(kept, rel)
		}
		p.Relationships = kept
		out[i] = *p
	}
	return out
}

// Reconnect moves an endpoint of a lineage edge.
func (h *TreeHandler) Reconnect(ctx context.Context, old entities.Edge, conn Connection) (*entities.Edge, error) {
	const op = "reconnect"
	if cached, ok := h.canvas.Edge(old.ID); ok {
		old = cached
	}
	if old.Kind == entities.EdgeSpouse || strings.HasPrefix(old.ID, "spouse-") {
		return nil, h.reject(op, entities.NewValidation("spouse edges cannot be reconnected"))
	}
	if old.Source == "" || old.Target == "" {
		return nil, h.reject(op, entities.NewValidation("unknown edge %s", old.ID))
	}
	if conn.Source == "" || conn.Target == "" || conn.Source == conn.Target {
		return nil, h.reject(op, entities.NewValidation("connection needs two distinct people"))
	}
	if conn.Source == old.Source && conn.Target == old.Target {
		return &old, nil
	}
	if err := h.guardCycle(ctx, op, conn.Source, conn.Target, &old); err != nil {
		return nil, err
	}

	edge := entities.LineageEdge(conn.Source, conn.Target)
	h.canvas.RemoveEdge(old.ID)
	h.canvas.AddEdge(edge)

	seq := h.begin(op)
	steps := []struct {
		owner, other string
		op           entities.LinkOp
		kind         entities.LinkKind
	}{
		{old.Source, old.Target, entities.OpRemove, entities.LinkChild},
		{old.Target, old.Source, entities.OpRemove, entities.LinkParent},
		{conn.Source, conn.Target, entities.OpAdd, entities.LinkChild},
		{conn.Target, conn.Source, entities.OpAdd, entities.LinkParent},
	}
	for _, st := range steps {
		if err := seq.link(ctx, st.owner, st.other, st.op, st.kind, ""); err != nil {
			return nil, err
		}
	}
	return &edge, nil
}

// ToggleSpouseStatus flips a spouse edge between CURRENT and FORMER and
// returns the new status.
func (h *TreeHandler) ToggleSpouseStatus(ctx context.Context, edgeID string) (entities.RelationStatus, error) {
	const op = "toggle_spouse"
	aID, bID, err := h.spouseEndpoints(ctx, edgeID)
	if err != nil {
		if entities.TypeOf(err) != "" {
			return "", err
		}
		return "", h.reject(op, entities.NewValidation("%v", err))
	}

	a, err := h.load(ctx, op, aID)
	if err != nil {
		return "", err
	}
	b, err := h.load(ctx, op, bID)
	if err != nil {
		return "", err
	}
	if a.FindRelationship(bID, entities.RelationSpouse) < 0 && b.FindRelationship(aID, entities.RelationSpouse) < 0 {
		return "", h.reject(op, entities.NewValidation("no spouse link between %s and %s", aID, bID))
	}
	next := spouseStatus(a, b).Toggle()

	h.canvas.SetEdgeStatus(edgeID, next)

	seq := h.begin(op)
	if err := seq.link(ctx, aID, bID, entities.OpUpdate, entities.LinkSpouse, next); err != nil {
		return "", err
	}
	if err := seq.link(ctx, bID, aID, entities.OpUpdate, entities.LinkSpouse, next); err != nil {
		return "", err
	}
	return next, nil
}

// spouseStatus reads the stored status of the a-b spouse link, preferring
// a's record. An absent link reads as CURRENT.
func spouseStatus(a, b *entities.Person) entities.RelationStatus {
	if i := a.FindRelationship(b.ID, entities.RelationSpouse); i >= 0 {
		return a.Relationships[i].Status.OrCurrent()
	}
	if i := b.FindRelationship(a.ID, entities.RelationSpouse); i >= 0 {
		return b.Relationships[i].Status.OrCurrent()
	}
	return entities.StatusCurrent
}

// spouseEndpoints resolves an edge id through the canvas, projecting it
// first when stale, since ids with dashes cannot be split.
func (h *TreeHandler) spouseEndpoints(ctx context.Context, edgeID string) (string, string, error) {
	if h.canvas.NeedsReload() {
		if _, err := h.Graph(ctx); err != nil {
			return "", "", err
		}
	}
	if e, ok := h.canvas.Edge(edgeID); ok {
		if e.Kind != entities.EdgeSpouse {
			return "", "", fmt.Errorf("edge %s is not a spouse edge", edgeID)
		}
		return e.Source, e.Target, nil
	}
	return entities.ParseSpouseEdgeID(edgeID)
}

// CreateSpouseFromDrag creates a spouse for the source of a lateral drag
// released on empty canvas. Other drags are ignored and return nil.
func (h *TreeHandler) CreateSpouseFromDrag(ctx context.Context, drag DragEnd) (*entities.Person, error) {
	const op = "create_spouse"
	if !drag.OnPane || !entities.IsLateralHandle(drag.SourceHandle) {
		return nil, nil
	}
	source, err := h.load(ctx, op, drag.Source)
	if err != nil {
		return nil, err
	}

	gender := entities.GenderMale
	if source.Gender == entities.GenderMale {
		gender = entities.GenderFemale
	}
	partner := h.newPerson(placeholderFirstFem, placeholderSpouseLast, gender, entities.Relationship{
		PersonID: source.ID,
		Type:     entities.RelationSpouse,
		Status:   entities.StatusCurrent,
	})

	h.canvas.UpsertNode(entities.NodeFor(partner, offset(h.canvas.PositionOf(source.ID), spouseOffsetX, 0)))
	h.canvas.AddEdge(entities.SpouseEdge(source.ID, partner.ID, entities.StatusCurrent))

	seq := h.begin(op)
	if err := seq.put(ctx, partner); err != nil {
		return nil, err
	}
	if err := seq.link(ctx, source.ID, partner.ID, entities.OpAdd, entities.LinkSpouse, entities.StatusCurrent); err != nil {
		return nil, err
	}
	return partner, nil
}

// SavePerson stores profile fields. A new id is assigned when empty.
// Relationships of an existing person are kept, since links only change
// through link edits.
func (h *TreeHandler) SavePerson(ctx context.Context, person *entities.Person) (*entities.Person, error) {
	const op = "save_person"
	if strings.TrimSpace(person.FirstName) == "" && strings.TrimSpace(person.LastName) == "" {
		return nil, h.reject(op, entities.NewValidation("a name is required"))
	}
	if person.Gender == "" {
		person.Gender = entities.GenderUnknown
	}
	if !person.Gender.Valid() {
		return nil, h.reject(op, entities.NewValidation("invalid gender: %s", person.Gender))
	}

	saved := person.Clone()
	if saved.ID == "" {
		saved.ID = services.NewPersonID()
	}
	err := h.mutator.Locked(saved.ID, func() error {
		existing, err := h.store.GetPerson(ctx, saved.ID)
		if err != nil {
			return entities.NewStorage("get person "+saved.ID, err)
		}
		now := timeNow()
		if existing != nil {
			saved.Relationships = existing.Relationships
			saved.CreatedAt = existing.CreatedAt
			saved.CreatedBy = existing.CreatedBy
		} else {
			saved.CreatedAt = now
			if saved.CreatedBy == "" {
				saved.CreatedBy = h.opts.CreatedBy
			}
			if saved.Relationships == nil {
				saved.Relationships = []entities.Relationship{}
			}
		}
		saved.UpdatedAt = now
		if err := h.store.PutPerson(ctx, saved); err != nil {
			return entities.NewStorage("put person "+saved.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, h.begin(op).fail("put "+saved.ID, err)
	}

	node := entities.NodeFor(saved, h.canvas.PositionOf(saved.ID))
	if !h.canvas.UpdateNodeData(saved.ID, node.Data) {
		h.canvas.UpsertNode(node)
	}
	return saved, nil
}

// DeletePerson removes every link pointing at id and then the record itself.
func (h *TreeHandler) DeletePerson(ctx context.Context, id string) error {
	const op = "delete_person"
	if _, err := h.load(ctx, op, id); err != nil {
		return err
	}
	people, err := h.store.ListPeople(ctx)
	if err != nil {
		err = entities.NewStorage("list people", err)
		h.logger.Error("edit failed", zap.String("operation", op), zap.Error(err))
		return err
	}

	h.canvas.RemoveNode(id)

	seq := h.begin(op)
	for i := range people {
		other := &people[i]
		if other.ID == id {
			continue
		}
		done := make(map[entities.LinkKind]bool)
		for _, rel := range other.Relationships {
			kind := entities.KindOf(rel.Type)
			if rel.PersonID != id || done[kind] {
				continue
			}
			done[kind] = true
			if err := seq.link(ctx, other.ID, id, entities.OpRemove, kind, ""); err != nil {
				return err
			}
		}
	}
	return seq.run("delete "+id, func() error {
		return h.mutator.Locked(id, func() error {
			if err := h.store.DeletePerson(ctx, id); err != nil && !entities.IsNotFound(err) {
				return entities.NewStorage("delete person "+id, err)
			}
			return nil
		})
	})
}

// Person returns the stored record for id.
func (h *TreeHandler) Person(ctx context.Context, id string) (*entities.Person, error) {
	p, err := h.store.GetPerson(ctx, id)
	if err != nil {
		return nil, entities.NewStorage("get person "+id, err)
	}
	if p == nil {
		return nil, entities.NewNotFound(id)
	}
	return p, nil
}

// People returns every stored person.
func (h *TreeHandler) People(ctx context.Context) ([]entities.Person, error) {
	people, err := h.store.ListPeople(ctx)
	if err != nil {
		return nil, entities.NewStorage("list people", err)
	}
	return people, nil
}

// Graph returns the canvas, re-projecting from storage when it is empty or
// stale.
func (h *TreeHandler) Graph(ctx context.Context) (entities.Graph, error) {
	if h.canvas.NeedsReload() {
		return h.Reload(ctx)
	}
	return h.canvas.Snapshot(), nil
}

// Reload re-projects the canvas from storage, keeping known positions.
func (h *TreeHandler) Reload(ctx context.Context) (entities.Graph, error) {
	people, err := h.store.ListPeople(ctx)
	if err != nil {
		err = entities.NewStorage("list people", err)
		h.logger.Error("reload failed", zap.Error(err))
		return entities.Graph{}, err
	}
	g := services.ProjectWithPositions(people, h.canvas.Positions())
	h.canvas.Replace(g)
	h.logger.Debug("canvas reloaded",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
		zap.Uint64("generation", h.canvas.Generation()))
	return g, nil
}

// Repair heals mirror violations and reloads the canvas.
func (h *TreeHandler) Repair(ctx context.Context, dryRun bool) (*services.RepairReport, error) {
	if h.reconciler == nil {
		return nil, fmt.Errorf("repair is not configured")
	}
	report, err := h.reconciler.Heal(ctx, dryRun)
	if err != nil {
		h.canvas.Invalidate()
		h.logger.Error("repair failed", zap.Error(err))
		return nil, err
	}
	if !dryRun {
		if _, err := h.Reload(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}
