package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/raices-core/internal/domain/entities"
)

func testNode(id string, x, y float64) entities.Node {
	return entities.Node{ID: id, Kind: entities.NodeKindPerson, Position: entities.Position{X: x, Y: y}}
}

func TestCanvas_NeedsReload(t *testing.T) {
	c := NewCanvas()
	assert.True(t, c.NeedsReload(), "fresh canvas")

	// optimistic patches before the first load do not count as loaded
	c.UpsertNode(testNode("a", 0, 0))
	assert.True(t, c.NeedsReload())

	c.Replace(entities.Graph{Nodes: []entities.Node{testNode("a", 0, 0)}})
	assert.False(t, c.NeedsReload())

	c.Invalidate()
	assert.True(t, c.Stale())
	assert.True(t, c.NeedsReload())

	c.Replace(entities.Graph{Nodes: []entities.Node{testNode("a", 0, 0)}})
	assert.False(t, c.Stale())
}

func TestCanvas_GenerationAdvancesOnPatch(t *testing.T) {
	c := NewCanvas()
	g0 := c.Generation()

	c.UpsertNode(testNode("a", 0, 0))
	g1 := c.Generation()
	assert.Greater(t, g1, g0)

	assert.True(t, c.AddEdge(entities.LineageEdge("a", "b")))
	assert.Greater(t, c.Generation(), g1)

	// duplicate edge is not a patch
	g2 := c.Generation()
	assert.False(t, c.AddEdge(entities.LineageEdge("a", "b")))
	assert.Equal(t, g2, c.Generation())
}

func TestCanvas_Nodes(t *testing.T) {
	c := NewCanvas()
	c.UpsertNode(testNode("a", 1, 2))
	c.UpsertNode(testNode("b", 3, 4))

	assert.Equal(t, entities.Position{X: 1, Y: 2}, c.PositionOf("a"))
	assert.Equal(t, entities.Position{}, c.PositionOf("missing"))

	require.True(t, c.MoveNode("a", entities.Position{X: 10, Y: 20}))
	assert.False(t, c.MoveNode("missing", entities.Position{}))
	assert.Equal(t, map[string]entities.Position{
		"a": {X: 10, Y: 20},
		"b": {X: 3, Y: 4},
	}, c.Positions())

	require.True(t, c.UpdateNodeData("b", entities.NodeData{Label: "Ana"}))
	n, ok := c.Node("b")
	require.True(t, ok)
	assert.Equal(t, "Ana", n.Data.Label)
	assert.Equal(t, entities.Position{X: 3, Y: 4}, n.Position)

	c.UpsertNode(testNode("a", 5, 5))
	assert.Len(t, c.Snapshot().Nodes, 2)
}

func TestCanvas_RemoveNodeDropsIncidentEdges(t *testing.T) {
	c := NewCanvas()
	c.UpsertNode(testNode("a", 0, 0))
	c.UpsertNode(testNode("b", 0, 0))
	c.UpsertNode(testNode("c", 0, 0))
	c.AddEdge(entities.LineageEdge("a", "b"))
	c.AddEdge(entities.SpouseEdge("a", "c", entities.StatusCurrent))
	c.AddEdge(entities.LineageEdge("c", "b"))

	c.RemoveNode("a")

	g := c.Snapshot()
	require.Len(t, g.Nodes, 2)
	_, ok := c.Node("a")
	assert.False(t, ok)
	n, ok := c.Node("c")
	require.True(t, ok)
	assert.Equal(t, "c", n.ID)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, entities.LineageEdgeID("c", "b"), g.Edges[0].ID)
}

func TestCanvas_SnapshotSortsEdges(t *testing.T) {
	c := NewCanvas()
	c.AddEdge(entities.SpouseEdge("x", "y", entities.StatusCurrent))
	c.AddEdge(entities.LineageEdge("b", "c"))
	c.AddEdge(entities.LineageEdge("a", "c"))

	g := c.Snapshot()
	ids := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"e-a-c", "e-b-c", "spouse-x-y"}, ids)
}

func TestCanvas_SetEdgeStatus(t *testing.T) {
	c := NewCanvas()
	spouseEdge := entities.SpouseEdge("a", "b", entities.StatusCurrent)
	c.AddEdge(spouseEdge)
	c.AddEdge(entities.LineageEdge("a", "c"))

	require.True(t, c.SetEdgeStatus(spouseEdge.ID, entities.StatusFormer))
	e, ok := c.Edge(spouseEdge.ID)
	require.True(t, ok)
	assert.Equal(t, entities.StatusFormer, e.Status())

	assert.False(t, c.SetEdgeStatus(entities.LineageEdgeID("a", "c"), entities.StatusFormer))
	assert.False(t, c.SetEdgeStatus("spouse-q-r", entities.StatusFormer))
}

func TestCanvas_RemoveEdge(t *testing.T) {
	c := NewCanvas()
	c.AddEdge(entities.LineageEdge("a", "b"))

	assert.True(t, c.RemoveEdge("e-a-b"))
	assert.False(t, c.RemoveEdge("e-a-b"))
	assert.Empty(t, c.Snapshot().Edges)
}
