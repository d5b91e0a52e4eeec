package entities

import "fmt"

// RelationType is the kind of a link from its owner to another person.
type RelationType string

const (
	RelationFather  RelationType = "FATHER"
	RelationMother  RelationType = "MOTHER"
	RelationChild   RelationType = "CHILD"
	RelationSpouse  RelationType = "SPOUSE"
	RelationSibling RelationType = "SIBLING"
)

// Valid reports whether t is a known relation type.
func (t RelationType) Valid() bool {
	switch t {
	case RelationFather, RelationMother, RelationChild, RelationSpouse, RelationSibling:
		return true
	}
	return false
}

// IsParent reports whether t points from a child to one of its parents.
func (t RelationType) IsParent() bool {
	return t == RelationFather || t == RelationMother
}

// RelationStatus qualifies a spouse link.
type RelationStatus string

const (
	StatusCurrent RelationStatus = "CURRENT"
	StatusFormer  RelationStatus = "FORMER"
)

// Valid reports whether s is a known status.
func (s RelationStatus) Valid() bool {
	return s == StatusCurrent || s == StatusFormer
}

// Toggle flips CURRENT and FORMER.
func (s RelationStatus) Toggle() RelationStatus {
	if s == StatusFormer {
		return StatusCurrent
	}
	return StatusFormer
}

// OrCurrent reads a missing status as CURRENT.
func (s RelationStatus) OrCurrent() RelationStatus {
	if s == "" {
		return StatusCurrent
	}
	return s
}

// Relationship is a link embedded in a Person, from that person to PersonID.
type Relationship struct {
	ID       string         `json:"id"`
	PersonID string         `json:"personId"`
	Type     RelationType   `json:"type"`
	Status   RelationStatus `json:"status,omitempty"`
}

// LinkKind is the side-neutral kind used when editing links. Parent
// resolves to FATHER or MOTHER depending on the other person's gender.
type LinkKind string

const (
	LinkParent  LinkKind = "PARENT"
	LinkChild   LinkKind = "CHILD"
	LinkSpouse  LinkKind = "SPOUSE"
	LinkSibling LinkKind = "SIBLING"
)

// ParseLinkKind converts a user-supplied string to a LinkKind.
func ParseLinkKind(s string) (LinkKind, error) {
	switch LinkKind(s) {
	case LinkParent, LinkChild, LinkSpouse, LinkSibling:
		return LinkKind(s), nil
	case "FATHER", "MOTHER":
		return LinkParent, nil
	default:
		return "", fmt.Errorf("invalid link kind: %s (valid: PARENT, CHILD, SPOUSE, SIBLING)", s)
	}
}

// Types returns the stored relation types this kind matches.
func (k LinkKind) Types() []RelationType {
	switch k {
	case LinkParent:
		return []RelationType{RelationFather, RelationMother}
	case LinkChild:
		return []RelationType{RelationChild}
	case LinkSpouse:
		return []RelationType{RelationSpouse}
	case LinkSibling:
		return []RelationType{RelationSibling}
	}
	return nil
}

// Matches reports whether a stored type belongs to this kind.
func (k LinkKind) Matches(t RelationType) bool {
	for _, kt := range k.Types() {
		if kt == t {
			return true
		}
	}
	return false
}

// KindOf maps a stored relation type back to its link kind.
func KindOf(t RelationType) LinkKind {
	switch t {
	case RelationFather, RelationMother:
		return LinkParent
	case RelationChild:
		return LinkChild
	case RelationSpouse:
		return LinkSpouse
	default:
		return LinkSibling
	}
}

// ParentTypeFor picks the parent relation type for a parent of the given
// gender. Anything other than FEMALE is recorded as FATHER.
func ParentTypeFor(parentGender Gender) RelationType {
	if parentGender == GenderFemale {
		return RelationMother
	}
	return RelationFather
}

// MirrorType returns the relation type the other person must hold for a
// link of type t owned by someone of ownerGender.
func MirrorType(t RelationType, ownerGender Gender) RelationType {
	switch t {
	case RelationChild:
		return ParentTypeFor(ownerGender)
	case RelationFather, RelationMother:
		return RelationChild
	default:
		return t
	}
}

// LinkOp is the operation applied by the mutator.
type LinkOp string

const (
	OpAdd    LinkOp = "ADD"
	OpRemove LinkOp = "REMOVE"
	OpUpdate LinkOp = "UPDATE"
)
