package services

import (
	"sort"

	"github.com/ersonp/raices-core/internal/domain/entities"
)

// RowSpacing is the vertical gap between default node positions.
const RowSpacing = 250

// Project derives the visual graph from a snapshot of person records.
func Project(people []entities.Person) entities.Graph {
	return ProjectWithPositions(people, nil)
}

// ProjectWithPositions is Project with stored node positions. People
// missing from positions are stacked vertically in input order.
func ProjectWithPositions(people []entities.Person, positions map[string]entities.Position) entities.Graph {
	present := make(map[string]bool, len(people))
	for i := range people {
		present[people[i].ID] = true
	}

	nodes := make([]entities.Node, 0, len(people))
	for i := range people {
		pos, ok := positions[people[i].ID]
		if !ok {
			pos = entities.Position{X: 0, Y: float64(i * RowSpacing)}
		}
		nodes = append(nodes, entities.NodeFor(&people[i], pos))
	}

	edges := make(map[string]entities.Edge)
	// Spouse edges whose status came from the canonical source.
	settled := make(map[string]bool)

	for i := range people {
		owner := &people[i]
		for _, rel := range owner.Relationships {
			if rel.PersonID == owner.ID || !present[rel.PersonID] {
				continue
			}
			switch rel.Type {
			case entities.RelationChild:
				addOnce(edges, entities.LineageEdge(owner.ID, rel.PersonID))
			case entities.RelationFather, entities.RelationMother:
				addOnce(edges, entities.LineageEdge(rel.PersonID, owner.ID))
			case entities.RelationSpouse:
				e := entities.SpouseEdge(owner.ID, rel.PersonID, rel.Status)
				if settled[e.ID] {
					continue
				}
				if _, seen := edges[e.ID]; !seen || e.Source == owner.ID {
					edges[e.ID] = e
				}
				if e.Source == owner.ID {
					settled[e.ID] = true
				}
			}
		}
	}

	out := make([]entities.Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return entities.Graph{Nodes: nodes, Edges: out}
}

func addOnce(edges map[string]entities.Edge, e entities.Edge) {
	if _, ok := edges[e.ID]; !ok {
		edges[e.ID] = e
	}
}
