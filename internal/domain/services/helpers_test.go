package services

import (
	"github.com/ersonp/raices-core/internal/domain/entities"
)

func newPerson(id string, gender entities.Gender, rels ...entities.Relationship) entities.Person {
	return entities.Person{
		ID:            id,
		FirstName:     "First " + id,
		LastName:      "Last",
		Gender:        gender,
		IsLiving:      true,
		Relationships: rels,
	}
}

func rel(personID string, t entities.RelationType) entities.Relationship {
	return entities.Relationship{ID: "r-" + string(t) + "-" + personID, PersonID: personID, Type: t}
}

func spouse(personID string, status entities.RelationStatus) entities.Relationship {
	r := rel(personID, entities.RelationSpouse)
	r.Status = status
	return r
}

// countLinks counts relationships of type t from p to personID.
func countLinks(p *entities.Person, personID string, types ...entities.RelationType) int {
	n := 0
	for _, r := range p.Relationships {
		if r.PersonID != personID {
			continue
		}
		for _, t := range types {
			if r.Type == t {
				n++
			}
		}
	}
	return n
}
