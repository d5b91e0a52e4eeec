// Package neo4j provides a Neo4j implementation of the PersonStore port.
// Each person is a (:Person) node scoped by tree name; the full record,
// relationship list included, is kept as a JSON property so a put replaces
// every link the person owns.
package neo4j

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
)

// Repository implements ports.PersonStore on Neo4j.
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	tree     string
}

// NewRepository connects to Neo4j and verifies connectivity.
func NewRepository(ctx context.Context, cfg config.Neo4jConfig, tree string) (*Repository, error) {
	if cfg.URI == "" {
		return nil, errors.New("neo4j uri is required")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}

	return NewRepositoryWithDriver(driver, cfg.Database, tree), nil
}

// NewRepositoryWithDriver wraps an existing driver.
func NewRepositoryWithDriver(driver neo4j.DriverWithContext, database, tree string) *Repository {
	return &Repository{driver: driver, database: database, tree: tree}
}

// Close closes the Neo4j driver connection.
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

// EnsureSchema creates the uniqueness constraint and the ordering index.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT person_tree_id IF NOT EXISTS FOR (p:Person) REQUIRE (p.tree, p.id) IS UNIQUE`,
		`CREATE INDEX person_tree_seq IF NOT EXISTS FOR (p:Person) ON (p.tree, p.seq)`,
	}
	for _, stmt := range statements {
		result, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// GetPerson returns the person with id, or (nil, nil) when absent.
func (r *Repository) GetPerson(ctx context.Context, id string) (*entities.Person, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (p:Person {tree: $tree, id: $id})
		RETURN p.data AS data
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"tree": r.tree,
		"id":   id,
	})
	if err != nil {
		return nil, fmt.Errorf("finding person: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("finding person: %w", err)
		}
		return nil, nil
	}

	return decodePerson(result.Record())
}

// PutPerson inserts or fully replaces a person record.
func (r *Repository) PutPerson(ctx context.Context, person *entities.Person) error {
	if person == nil || person.ID == "" {
		return errors.New("person id is required")
	}

	rels := person.Relationships
	if rels == nil {
		rels = []entities.Relationship{}
	}
	record := *person
	record.Relationships = rels
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling person: %w", err)
	}

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// seq is only set on create so listing keeps creation order.
	query := `
		MERGE (p:Person {tree: $tree, id: $id})
		ON CREATE SET p.seq = timestamp()
		SET p.data = $data,
		    p.first_name = $first_name,
		    p.last_name = $last_name,
		    p.gender = $gender,
		    p.updated_at = datetime()
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"tree":       r.tree,
		"id":         person.ID,
		"data":       string(data),
		"first_name": person.FirstName,
		"last_name":  person.LastName,
		"gender":     string(person.Gender),
	})
	if err != nil {
		return fmt.Errorf("saving person: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("saving person: %w", err)
	}
	return nil
}

// DeletePerson removes a person node. Returns a NotFoundError when absent.
func (r *Repository) DeletePerson(ctx context.Context, id string) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := `
		MATCH (p:Person {tree: $tree, id: $id})
		DETACH DELETE p
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"tree": r.tree,
		"id":   id,
	})
	if err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}

	summary, err := result.Consume(ctx)
	if err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}
	if summary.Counters().NodesDeleted() == 0 {
		return entities.NewNotFound(id)
	}
	return nil
}

// ListPeople returns every person in the tree in creation order.
func (r *Repository) ListPeople(ctx context.Context) ([]entities.Person, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (p:Person {tree: $tree})
		RETURN p.data AS data
		ORDER BY p.seq, p.id
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"tree": r.tree,
	})
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}

	var people []entities.Person
	for result.Next(ctx) {
		p, err := decodePerson(result.Record())
		if err != nil {
			return nil, err
		}
		people = append(people, *p)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	return people, nil
}

func decodePerson(record *neo4j.Record) (*entities.Person, error) {
	data := getStringFromRecord(record, "data")
	if data == "" {
		return nil, errors.New("person node has no data")
	}

	var p entities.Person
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshaling person: %w", err)
	}
	if p.Relationships == nil {
		p.Relationships = []entities.Relationship{}
	}
	return &p, nil
}

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
