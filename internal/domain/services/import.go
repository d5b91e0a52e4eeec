package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/domain/ports"
	"github.com/ersonp/raices-core/internal/infrastructure/parsers"
)

// ConflictStrategy defines how to handle existing people during import.
type ConflictStrategy string

const (
	// ConflictSkip skips people that already exist (by ID).
	ConflictSkip ConflictStrategy = "skip"
	// ConflictOverwrite replaces existing people with the imported record.
	ConflictOverwrite ConflictStrategy = "overwrite"
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun     bool             // Validate without saving
	OnConflict ConflictStrategy // How to handle existing people
	CreatedBy  string           // Recorded on new people
	Reconcile  bool             // Heal missing mirrors once imported
}

// ImportError represents an error for a specific person during import.
type ImportError struct {
	Line    int    // Line number (1-indexed, 0 if unknown)
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []ImportError
	Repair   *RepairReport
}

// ImportService loads person records from external sources.
type ImportService struct {
	store      ports.PersonStore
	reconciler *Reconciler
}

// NewImportService creates a new import service. reconciler may be nil.
func NewImportService(store ports.PersonStore, reconciler *Reconciler) *ImportService {
	return &ImportService{store: store, reconciler: reconciler}
}

// Import validates and stores raw people.
func (s *ImportService) Import(ctx context.Context, raw []parsers.RawPerson, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	valid, validationErrors := validatePeople(raw)
	result.Errors = validationErrors

	if len(valid) == 0 {
		return result, nil
	}

	people := convertPeople(valid, opts.CreatedBy)

	if opts.DryRun {
		result.Imported = len(people)
		return result, nil
	}

	for i := range people {
		saved, err := s.save(ctx, &people[i], opts.OnConflict)
		if err != nil {
			return nil, fmt.Errorf("saving person %s: %w", people[i].ID, err)
		}
		if saved {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	if opts.Reconcile && s.reconciler != nil {
		report, err := s.reconciler.Heal(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("reconciling imported people: %w", err)
		}
		result.Repair = report
	}

	return result, nil
}

// save writes person according to the conflict strategy, keeping the
// original createdAt when overwriting.
func (s *ImportService) save(ctx context.Context, person *entities.Person, onConflict ConflictStrategy) (bool, error) {
	existing, err := s.store.GetPerson(ctx, person.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if onConflict == ConflictSkip {
			return false, nil
		}
		person.CreatedAt = existing.CreatedAt
		if person.CreatedBy == "" {
			person.CreatedBy = existing.CreatedBy
		}
	}
	if err := s.store.PutPerson(ctx, person); err != nil {
		return false, err
	}
	return true, nil
}

func validatePeople(raw []parsers.RawPerson) ([]parsers.RawPerson, []ImportError) {
	valid := make([]parsers.RawPerson, 0, len(raw))
	var errs []ImportError

	for i := range raw {
		lineNum := raw[i].LineNum
		if lineNum == 0 {
			lineNum = i + 1
		}
		if err := validateRawPerson(&raw[i], lineNum); err != nil {
			errs = append(errs, *err)
			continue
		}
		valid = append(valid, raw[i])
	}

	return valid, errs
}

// validateRawPerson validates a single raw person and returns an error if invalid.
func validateRawPerson(raw *parsers.RawPerson, lineNum int) *ImportError {
	if strings.TrimSpace(raw.FirstName) == "" && strings.TrimSpace(raw.LastName) == "" {
		return &ImportError{Line: lineNum, Field: "firstName", Message: "missing required field: firstName or lastName"}
	}

	if raw.Gender != "" && !entities.Gender(raw.Gender).Valid() {
		return &ImportError{
			Line:    lineNum,
			Field:   "gender",
			Value:   raw.Gender,
			Message: fmt.Sprintf("invalid gender %q (valid: MALE, FEMALE, OTHER, UNKNOWN)", raw.Gender),
		}
	}

	for _, rel := range raw.Relationships {
		if rel.PersonID == "" {
			return &ImportError{Line: lineNum, Field: "relationships", Message: "relationship missing personId"}
		}
		if !entities.RelationType(rel.Type).Valid() {
			return &ImportError{
				Line:    lineNum,
				Field:   "relationships",
				Value:   rel.Type,
				Message: fmt.Sprintf("invalid relationship type %q (valid: FATHER, MOTHER, CHILD, SPOUSE, SIBLING)", rel.Type),
			}
		}
		if rel.Status != "" && !entities.RelationStatus(rel.Status).Valid() {
			return &ImportError{
				Line:    lineNum,
				Field:   "relationships",
				Value:   rel.Status,
				Message: fmt.Sprintf("invalid relationship status %q (valid: CURRENT, FORMER)", rel.Status),
			}
		}
	}

	return nil
}

// convertPeople converts raw people to domain entities.
func convertPeople(raw []parsers.RawPerson, createdBy string) []entities.Person {
	people := make([]entities.Person, 0, len(raw))
	now := timeNow()

	for i := range raw {
		r := &raw[i]
		id := r.ID
		if id == "" {
			id = NewPersonID()
		}
		gender := entities.Gender(r.Gender)
		if gender == "" {
			gender = entities.GenderUnknown
		}
		living := r.Death == nil
		if r.IsLiving != nil {
			living = *r.IsLiving
		}

		person := entities.Person{
			ID:              id,
			FirstName:       r.FirstName,
			LastName:        r.LastName,
			MaidenName:      r.MaidenName,
			Gender:          gender,
			Birth:           r.Birth,
			Death:           r.Death,
			Bio:             r.Bio,
			ProfilePhotoURL: r.ProfilePhotoURL,
			IsLiving:        living,
			Relationships:   make([]entities.Relationship, 0, len(r.Relationships)),
			CreatedBy:       createdBy,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		for _, rr := range r.Relationships {
			rel := entities.Relationship{
				ID:       rr.ID,
				PersonID: rr.PersonID,
				Type:     entities.RelationType(rr.Type),
				Status:   entities.RelationStatus(rr.Status),
			}
			if rel.ID == "" {
				rel.ID = uuid.NewString()
			}
			if rel.Type == entities.RelationSpouse {
				rel.Status = rel.Status.OrCurrent()
			}
			person.Relationships = append(person.Relationships, rel)
		}

		people = append(people, person)
	}

	return people
}

// NewPersonID returns a fresh person id without dashes, so spouse edge ids
// built from two person ids stay parseable.
func NewPersonID() string {
	return "person_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
