package ports

import (
	"context"

	"github.com/ersonp/raices-core/internal/domain/entities"
)

// PersonStore defines the durable store of person records. Each record
// carries its own relationship list, so one put replaces every link owned
// by that person.
type PersonStore interface {
	// EnsureSchema creates the storage schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the underlying connection.
	Close() error

	// GetPerson returns the person with id, or (nil, nil) when absent.
	GetPerson(ctx context.Context, id string) (*entities.Person, error)

	// PutPerson inserts or fully replaces a person record.
	PutPerson(ctx context.Context, person *entities.Person) error

	// DeletePerson removes a person record. Returns a NotFoundError when absent.
	DeletePerson(ctx context.Context, id string) error

	// ListPeople returns every person in the tree in creation order.
	ListPeople(ctx context.Context) ([]entities.Person, error)
}
