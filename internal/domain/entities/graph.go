package entities

import (
	"fmt"
	"strings"
)

// NodeKindPerson is the only node kind rendered in a tree.
const NodeKindPerson = "person"

// EdgeKind distinguishes parent→child lines from spouse links.
type EdgeKind string

const (
	EdgeLineage EdgeKind = "lineage"
	EdgeSpouse  EdgeKind = "spouse"
)

// Handle ids used by the renderer. Left and right are the spouse ports.
const (
	HandleTop    = "top"
	HandleBottom = "bottom"
	HandleLeft   = "left"
	HandleRight  = "right"
)

// IsLateralHandle reports whether h is one of the spouse ports.
func IsLateralHandle(h string) bool {
	return h == HandleLeft || h == HandleRight
}

// Avatar accent colors keyed by gender.
const (
	AccentMale    = "#bfdbfe"
	AccentFemale  = "#fbcfe8"
	AccentNeutral = "#ffffff"
)

// AccentFor returns the placeholder avatar color for a gender.
func AccentFor(g Gender) string {
	switch g {
	case GenderMale:
		return AccentMale
	case GenderFemale:
		return AccentFemale
	default:
		return AccentNeutral
	}
}

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData holds the display fields of a person node.
type NodeData struct {
	Label     string `json:"label"`
	Image     string `json:"image,omitempty"`
	Gender    Gender `json:"gender"`
	Accent    string `json:"accent"`
	BirthYear string `json:"birthYear,omitempty"`
	DeathYear string `json:"deathYear,omitempty"`
}

// Node is one person on the canvas.
type Node struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// EdgeData carries the spouse status.
type EdgeData struct {
	Status RelationStatus `json:"status"`
}

// Edge is a lineage or spouse line between two nodes.
type Edge struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Kind         EdgeKind  `json:"kind"`
	SourceHandle string    `json:"sourceHandle,omitempty"`
	TargetHandle string    `json:"targetHandle,omitempty"`
	Data         *EdgeData `json:"data,omitempty"`
}

// Status returns the spouse status of the edge, CURRENT when unset.
func (e *Edge) Status() RelationStatus {
	if e.Data == nil {
		return StatusCurrent
	}
	return e.Data.Status.OrCurrent()
}

// Graph is the renderable projection of a tree.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeFor builds the canvas node for a person.
func NodeFor(p *Person, pos Position) Node {
	return Node{
		ID:       p.ID,
		Kind:     NodeKindPerson,
		Position: pos,
		Data: NodeData{
			Label:     p.DisplayName(),
			Image:     p.ProfilePhotoURL,
			Gender:    p.Gender,
			Accent:    AccentFor(p.Gender),
			BirthYear: p.BirthYear(),
			DeathYear: p.DeathYear(),
		},
	}
}

const (
	lineagePrefix = "e-"
	spousePrefix  = "spouse-"
)

// LineageEdgeID returns the id of the parent→child edge.
func LineageEdgeID(parentID, childID string) string {
	return lineagePrefix + parentID + "-" + childID
}

// SpousePair orders two ids lexically.
func SpousePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// SpouseEdgeID returns the canonical id of the spouse edge between a and b.
func SpouseEdgeID(a, b string) string {
	lo, hi := SpousePair(a, b)
	return spousePrefix + lo + "-" + hi
}

// LineageEdge builds a parent→child edge.
func LineageEdge(parentID, childID string) Edge {
	return Edge{
		ID:           LineageEdgeID(parentID, childID),
		Source:       parentID,
		Target:       childID,
		Kind:         EdgeLineage,
		SourceHandle: HandleBottom,
		TargetHandle: HandleTop,
	}
}

// SpouseEdge builds the canonical spouse edge between a and b.
func SpouseEdge(a, b string, status RelationStatus) Edge {
	lo, hi := SpousePair(a, b)
	return Edge{
		ID:           spousePrefix + lo + "-" + hi,
		Source:       lo,
		Target:       hi,
		Kind:         EdgeSpouse,
		SourceHandle: HandleRight,
		TargetHandle: HandleLeft,
		Data:         &EdgeData{Status: status.OrCurrent()},
	}
}

// ParseSpouseEdgeID decodes "spouse-<a>-<b>". It only succeeds when the
// split is unambiguous, i.e. neither id contains a dash.
func ParseSpouseEdgeID(id string) (string, string, error) {
	rest, ok := strings.CutPrefix(id, spousePrefix)
	if !ok {
		return "", "", fmt.Errorf("not a spouse edge id: %s", id)
	}
	parts := strings.Split(rest, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("ambiguous spouse edge id: %s", id)
	}
	return parts[0], parts[1], nil
}
