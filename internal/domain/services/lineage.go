package services

import "github.com/ersonp/raices-core/internal/domain/entities"

// LineageIndex maps each person id to the ids of their children, merging
// CHILD records with FATHER/MOTHER records held by the child.
type LineageIndex map[string]map[string]bool

// BuildLineageIndex indexes parent→child edges from a snapshot.
func BuildLineageIndex(people []entities.Person) LineageIndex {
	idx := make(LineageIndex)
	link := func(parent, child string) {
		if idx[parent] == nil {
			idx[parent] = make(map[string]bool)
		}
		idx[parent][child] = true
	}
	for i := range people {
		p := &people[i]
		for _, rel := range p.Relationships {
			switch {
			case rel.Type == entities.RelationChild:
				link(p.ID, rel.PersonID)
			case rel.Type.IsParent():
				link(rel.PersonID, p.ID)
			}
		}
	}
	return idx
}

// Descends reports whether to is reachable from from by following
// parent→child edges. A person descends from themselves.
func (idx LineageIndex) Descends(from, to string) bool {
	if from == to {
		return true
	}
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for child := range idx[cur] {
			if child == to {
				return true
			}
			if !seen[child] {
				seen[child] = true
				stack = append(stack, child)
			}
		}
	}
	return false
}

// WouldCreateCycle reports whether adding parentID→childID to the snapshot
// would make someone their own ancestor.
func WouldCreateCycle(people []entities.Person, parentID, childID string) bool {
	return BuildLineageIndex(people).Descends(childID, parentID)
}
