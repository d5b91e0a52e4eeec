// Package parsers provides parsers for importing person records from various formats.
package parsers

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/ersonp/raices-core/internal/domain/entities"
)

// RawRelationship is a link as read from an import file, before validation.
type RawRelationship struct {
	ID       string `json:"id,omitempty"`
	PersonID string `json:"personId"`
	Type     string `json:"type"`
	Status   string `json:"status,omitempty"`
}

// RawPerson represents a person parsed from an external source before validation.
type RawPerson struct {
	ID              string            `json:"id,omitempty"`
	FirstName       string            `json:"firstName"`
	LastName        string            `json:"lastName"`
	MaidenName      string            `json:"maidenName,omitempty"`
	Gender          string            `json:"gender"`
	IsLiving        *bool             `json:"isLiving,omitempty"` // Pointer to distinguish false from unset
	Birth           *entities.Event   `json:"birth,omitempty"`
	Death           *entities.Event   `json:"death,omitempty"`
	Bio             string            `json:"bio,omitempty"`
	ProfilePhotoURL string            `json:"profilePhotoUrl,omitempty"`
	Relationships   []RawRelationship `json:"relationships,omitempty"`
	LineNum         int               `json:"-"` // Line number in source file (set by parser)
}

// Parser defines the interface for parsing people from various formats.
type Parser interface {
	Parse(r io.Reader) ([]RawPerson, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
