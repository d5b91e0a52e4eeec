package entities

import (
	"strconv"
	"strings"
	"time"
)

// Gender of a person as recorded in the tree.
type Gender string

const (
	GenderMale    Gender = "MALE"
	GenderFemale  Gender = "FEMALE"
	GenderOther   Gender = "OTHER"
	GenderUnknown Gender = "UNKNOWN"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// EventType classifies a life event.
type EventType string

const (
	EventBirth       EventType = "BIRTH"
	EventDeath       EventType = "DEATH"
	EventMarriage    EventType = "MARRIAGE"
	EventDivorce     EventType = "DIVORCE"
	EventImmigration EventType = "IMMIGRATION"
	EventOther       EventType = "OTHER"
)

// DateInfo is a possibly partial date. Zero fields are unknown.
type DateInfo struct {
	Day     int    `json:"day,omitempty"`
	Month   int    `json:"month,omitempty"`
	Year    int    `json:"year,omitempty"`
	Display string `json:"display"`
}

// Location is where an event happened.
type Location struct {
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	PlaceID string   `json:"placeId,omitempty"`
}

// Event is a dated life event such as a birth or a death.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Date        *DateInfo `json:"date,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Person is the durable record of one individual, including the list of
// links from this person to others.
type Person struct {
	ID              string         `json:"id"`
	FirstName       string         `json:"firstName"`
	LastName        string         `json:"lastName"`
	MaidenName      string         `json:"maidenName,omitempty"`
	Gender          Gender         `json:"gender"`
	Birth           *Event         `json:"birth,omitempty"`
	Death           *Event         `json:"death,omitempty"`
	Bio             string         `json:"bio,omitempty"`
	Relationships   []Relationship `json:"relationships"`
	ProfilePhotoURL string         `json:"profilePhotoUrl,omitempty"`
	IsLiving        bool           `json:"isLiving"`
	CreatedBy       string         `json:"createdBy"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// DisplayName returns "FirstName LastName".
func (p *Person) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// BirthYear returns the birth year as a string, or "" when unknown.
func (p *Person) BirthYear() string {
	return eventYear(p.Birth)
}

// DeathYear returns the death year, "Presente" for living people, or "".
func (p *Person) DeathYear() string {
	if y := eventYear(p.Death); y != "" {
		return y
	}
	if p.IsLiving {
		return LivingLabel
	}
	return ""
}

// LivingLabel replaces the death year of a living person.
const LivingLabel = "Presente"

func eventYear(e *Event) string {
	if e == nil || e.Date == nil || e.Date.Year == 0 {
		return ""
	}
	return strconv.Itoa(e.Date.Year)
}

// Clone returns a deep copy of the relationship list so callers can
// modify the copy without touching shared state.
func (p *Person) Clone() *Person {
	c := *p
	c.Relationships = make([]Relationship, len(p.Relationships))
	copy(c.Relationships, p.Relationships)
	return &c
}

// FindRelationship returns the index of the first relationship of the
// given type pointing at personID, or -1.
func (p *Person) FindRelationship(personID string, types ...RelationType) int {
	for i := range p.Relationships {
		if p.Relationships[i].PersonID != personID {
			continue
		}
		for _, t := range types {
			if p.Relationships[i].Type == t {
				return i
			}
		}
	}
	return -1
}
