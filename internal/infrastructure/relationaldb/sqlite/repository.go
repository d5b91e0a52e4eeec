// Package sqlite provides a SQLite implementation of the PersonStore and
// AuditLog ports.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.PersonStore and ports.AuditLog using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	// Pragmas in the DSN apply to every pooled connection, not just the
	// first: foreign keys so relationships follow their owner on delete,
	// a busy timeout to avoid "database is locked" errors, and immediate
	// transactions so concurrent writers queue instead of deadlocking.
	dsn := cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// An in-memory database exists per connection.
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- People (one row per person record)
	CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		maiden_name TEXT,
		gender TEXT NOT NULL,
		birth TEXT,
		death TEXT,
		bio TEXT,
		profile_photo_url TEXT,
		is_living INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Relationships owned by a person, kept in list order
	CREATE TABLE IF NOT EXISTS relationships (
		owner_id TEXT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		person_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT,
		PRIMARY KEY (owner_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_relationships_person ON relationships(person_id);

	-- Audit log (tracks all applied edits)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		person_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_person ON audit_log(person_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// GetPerson returns the person with id, or (nil, nil) when absent.
func (r *Repository) GetPerson(ctx context.Context, id string) (*entities.Person, error) {
	query := `
		SELECT id, first_name, last_name, maiden_name, gender, birth, death, bio,
		       profile_photo_url, is_living, created_by, created_at, updated_at
		FROM people
		WHERE id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id)
	person, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding person: %w", err)
	}

	rels, err := r.relationshipsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	person.Relationships = rels
	return person, nil
}

// PutPerson inserts or fully replaces a person and its relationship list
// in one transaction.
func (r *Repository) PutPerson(ctx context.Context, person *entities.Person) error {
	if person == nil || person.ID == "" {
		return errors.New("person id is required")
	}

	birth, err := marshalEvent(person.Birth)
	if err != nil {
		return err
	}
	death, err := marshalEvent(person.Death)
	if err != nil {
		return err
	}

	createdAt := person.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}
	updatedAt := person.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Upsert keeps the rowid, so ListPeople stays in creation order.
	query := `
		INSERT INTO people (id, first_name, last_name, maiden_name, gender, birth, death, bio,
		                    profile_photo_url, is_living, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			maiden_name = excluded.maiden_name,
			gender = excluded.gender,
			birth = excluded.birth,
			death = excluded.death,
			bio = excluded.bio,
			profile_photo_url = excluded.profile_photo_url,
			is_living = excluded.is_living,
			created_by = excluded.created_by,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query,
		person.ID,
		person.FirstName,
		person.LastName,
		nullString(person.MaidenName),
		string(person.Gender),
		birth,
		death,
		nullString(person.Bio),
		nullString(person.ProfilePhotoURL),
		person.IsLiving,
		nullString(person.CreatedBy),
		formatTime(createdAt),
		formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving person: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE owner_id = ?`, person.ID); err != nil {
		return fmt.Errorf("clearing relationships: %w", err)
	}

	insert := `INSERT INTO relationships (owner_id, position, id, person_id, type, status) VALUES (?, ?, ?, ?, ?, ?)`
	for i, rel := range person.Relationships {
		_, err := tx.ExecContext(ctx, insert,
			person.ID, i, rel.ID, rel.PersonID, string(rel.Type), nullString(string(rel.Status)))
		if err != nil {
			return fmt.Errorf("saving relationship %s: %w", rel.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing person: %w", err)
	}
	return nil
}

// DeletePerson removes a person and its relationship list.
func (r *Repository) DeletePerson(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE owner_id = ?`, id); err != nil {
		return fmt.Errorf("deleting relationships: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM people WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return entities.NewNotFound(id)
	}
	return tx.Commit()
}

// ListPeople returns every person in creation order.
func (r *Repository) ListPeople(ctx context.Context) ([]entities.Person, error) {
	query := `
		SELECT id, first_name, last_name, maiden_name, gender, birth, death, bio,
		       profile_photo_url, is_living, created_by, created_at, updated_at
		FROM people
		ORDER BY rowid
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	defer rows.Close()

	var people []entities.Person
	index := make(map[string]int)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning person: %w", err)
		}
		p.Relationships = []entities.Relationship{}
		index[p.ID] = len(people)
		people = append(people, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating people: %w", err)
	}

	relRows, err := r.db.QueryContext(ctx, `
		SELECT owner_id, id, person_id, type, status
		FROM relationships
		ORDER BY owner_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}
	defer relRows.Close()

	for relRows.Next() {
		var owner string
		rel, err := scanRelationship(relRows, &owner)
		if err != nil {
			return nil, err
		}
		if i, ok := index[owner]; ok {
			people[i].Relationships = append(people[i].Relationships, rel)
		}
	}
	return people, relRows.Err()
}

// relationshipsOf loads a person's relationship list in stored order.
func (r *Repository) relationshipsOf(ctx context.Context, ownerID string) ([]entities.Relationship, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner_id, id, person_id, type, status
		FROM relationships
		WHERE owner_id = ?
		ORDER BY position
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	rels := []entities.Relationship{}
	for rows.Next() {
		var owner string
		rel, err := scanRelationship(rows, &owner)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action string, personID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `INSERT INTO audit_log (action, person_id, details) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, action, nullString(personID), detailsJSON)
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog finds audit log entries for a specific person.
func (r *Repository) FindAuditLog(ctx context.Context, personID string) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, person_id, details, created_at
		FROM audit_log
		WHERE person_id = ?
		ORDER BY created_at DESC, id DESC
	`
	return r.queryAuditLog(ctx, query, personID)
}

// FindAuditLogByAction finds audit log entries by action type.
func (r *Repository) FindAuditLogByAction(ctx context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, person_id, details, created_at
		FROM audit_log
		WHERE action = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	return r.queryAuditLog(ctx, query, action, limit)
}

func (r *Repository) queryAuditLog(ctx context.Context, query string, args ...any) ([]entities.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var personID, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&personID,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.PersonID = personID.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner) (*entities.Person, error) {
	var p entities.Person
	var gender, createdAt, updatedAt string
	var maiden, bio, photo, createdBy, birth, death sql.NullString
	if err := s.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&maiden,
		&gender,
		&birth,
		&death,
		&bio,
		&photo,
		&p.IsLiving,
		&createdBy,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	p.Gender = entities.Gender(gender)
	p.MaidenName = maiden.String
	p.Bio = bio.String
	p.ProfilePhotoURL = photo.String
	p.CreatedBy = createdBy.String

	var err error
	if p.Birth, err = unmarshalEvent(birth); err != nil {
		return nil, err
	}
	if p.Death, err = unmarshalEvent(death); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanRelationship(s scanner, owner *string) (entities.Relationship, error) {
	var (
		rel    entities.Relationship
		typ    string
		status sql.NullString
	)
	if err := s.Scan(owner, &rel.ID, &rel.PersonID, &typ, &status); err != nil {
		return rel, fmt.Errorf("scanning relationship: %w", err)
	}
	rel.Type = entities.RelationType(typ)
	rel.Status = entities.RelationStatus(status.String)
	return rel, nil
}

func marshalEvent(e *entities.Event) (sql.NullString, error) {
	if e == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling event: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalEvent(s sql.NullString) (*entities.Event, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var e entities.Event
	if err := json.Unmarshal([]byte(s.String), &e); err != nil {
		return nil, fmt.Errorf("unmarshaling event: %w", err)
	}
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
