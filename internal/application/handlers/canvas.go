package handlers

import (
	"sort"
	"sync"

	"github.com/ersonp/raices-core/internal/domain/entities"
)

// Canvas is the local copy of the visual graph. Handlers patch it right
// away and the store catches up afterwards. Every patch bumps the
// generation; a failed edit marks the canvas stale so the next read
// re-projects from storage.
type Canvas struct {
	mu         sync.RWMutex
	nodes      []entities.Node
	index      map[string]int
	edges      map[string]entities.Edge
	generation uint64
	stale      bool
	loaded     bool
}

// NewCanvas creates an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{
		index: make(map[string]int),
		edges: make(map[string]entities.Edge),
	}
}

// Replace swaps in a freshly projected graph and clears the stale flag.
func (c *Canvas) Replace(g entities.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = make([]entities.Node, len(g.Nodes))
	copy(c.nodes, g.Nodes)
	c.reindex()
	c.edges = make(map[string]entities.Edge, len(g.Edges))
	for _, e := range g.Edges {
		c.edges[e.ID] = e
	}
	c.stale = false
	c.loaded = true
	c.generation++
}

func (c *Canvas) reindex() {
	c.index = make(map[string]int, len(c.nodes))
	for i, n := range c.nodes {
		c.index[n.ID] = i
	}
}

// Snapshot returns a copy of the graph, edges sorted by id.
func (c *Canvas) Snapshot() entities.Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g := entities.Graph{
		Nodes: make([]entities.Node, len(c.nodes)),
		Edges: make([]entities.Edge, 0, len(c.edges)),
	}
	copy(g.Nodes, c.nodes)
	for _, e := range c.edges {
		g.Edges = append(g.Edges, e)
	}
	sort.Slice(g.Edges, func(i, j int) bool { return g.Edges[i].ID < g.Edges[j].ID })
	return g
}

// Generation returns the patch counter.
func (c *Canvas) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Invalidate marks the canvas as diverged from storage.
func (c *Canvas) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = true
	c.generation++
}

// Stale reports whether the canvas was invalidated since the last Replace.
func (c *Canvas) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// NeedsReload reports whether reads must re-project from storage first.
func (c *Canvas) NeedsReload() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale || !c.loaded || len(c.nodes) == 0
}

// Node returns the node with id.
func (c *Canvas) Node(id string) (entities.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return entities.Node{}, false
	}
	return c.nodes[i], true
}

// PositionOf returns the node position, or the origin when absent.
func (c *Canvas) PositionOf(id string) entities.Position {
	n, _ := c.Node(id)
	return n.Position
}

// Positions returns the position of every node.
func (c *Canvas) Positions() map[string]entities.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]entities.Position, len(c.nodes))
	for _, n := range c.nodes {
		out[n.ID] = n.Position
	}
	return out
}

// UpsertNode adds n or replaces the node with the same id.
func (c *Canvas) UpsertNode(n entities.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[n.ID]; ok {
		c.nodes[i] = n
	} else {
		c.index[n.ID] = len(c.nodes)
		c.nodes = append(c.nodes, n)
	}
	c.generation++
}

// UpdateNodeData replaces the display fields of an existing node.
func (c *Canvas) UpdateNodeData(id string, data entities.NodeData) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.nodes[i].Data = data
	c.generation++
	return true
}

// MoveNode sets the position of an existing node.
func (c *Canvas) MoveNode(id string, pos entities.Position) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.nodes[i].Position = pos
	c.generation++
	return true
}

// RemoveNode drops a node together with its incident edges.
func (c *Canvas) RemoveNode(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return
	}
	c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
	c.reindex()
	for eid, e := range c.edges {
		if e.Source == id || e.Target == id {
			delete(c.edges, eid)
		}
	}
	c.generation++
}

// Edge returns the edge with id.
func (c *Canvas) Edge(id string) (entities.Edge, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.edges[id]
	return e, ok
}

// AddEdge adds e unless an edge with the same id exists.
func (c *Canvas) AddEdge(e entities.Edge) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.edges[e.ID]; ok {
		return false
	}
	c.edges[e.ID] = e
	c.generation++
	return true
}

// RemoveEdge drops the edge with id.
func (c *Canvas) RemoveEdge(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.edges[id]; !ok {
		return false
	}
	delete(c.edges, id)
	c.generation++
	return true
}

// SetEdgeStatus restyles a spouse edge.
func (c *Canvas) SetEdgeStatus(id string, status entities.RelationStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.edges[id]
	if !ok || e.Kind != entities.EdgeSpouse {
		return false
	}
	e.Data = &entities.EdgeData{Status: status}
	c.edges[id] = e
	c.generation++
	return true
}
