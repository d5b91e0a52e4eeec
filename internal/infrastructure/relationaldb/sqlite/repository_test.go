package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/domain/ports"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.PersonStore = (*Repository)(nil)
	_ ports.AuditLog    = (*Repository)(nil)
)

// setupTestRepo creates an in-memory SQLite repository for testing.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	err = repo.EnsureSchema(context.Background())
	require.NoError(t, err)

	return repo
}

func testPerson(id, first string, gender entities.Gender, rels ...entities.Relationship) *entities.Person {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if rels == nil {
		rels = []entities.Relationship{}
	}
	return &entities.Person{
		ID:            id,
		FirstName:     first,
		LastName:      "Rojas",
		Gender:        gender,
		IsLiving:      true,
		Relationships: rels,
		CreatedBy:     "tester",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestNewRepository(t *testing.T) {
	t.Run("success with memory database", func(t *testing.T) {
		repo, err := NewRepository(config.SQLiteConfig{Path: ":memory:"})
		require.NoError(t, err)
		defer repo.Close()
		assert.NotNil(t, repo)
		assert.Equal(t, ":memory:", repo.Path())
	})

	t.Run("error with empty path", func(t *testing.T) {
		_, err := NewRepository(config.SQLiteConfig{Path: ""})
		require.Error(t, err)
	})
}

func TestRepository_EnsureSchema(t *testing.T) {
	repo := setupTestRepo(t)

	tables := []string{"people", "relationships", "audit_log"}
	for _, table := range tables {
		var count int
		err := repo.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestRepository_EnsureSchema_Idempotent(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.EnsureSchema(context.Background())
	require.NoError(t, err)
}

func TestRepository_GetPerson_Missing(t *testing.T) {
	repo := setupTestRepo(t)

	p, err := repo.GetPerson(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRepository_PutPerson_RoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	p := testPerson("p1", "Ana", entities.GenderFemale,
		entities.Relationship{ID: "r3", PersonID: "p9", Type: entities.RelationSpouse, Status: entities.StatusFormer},
		entities.Relationship{ID: "r1", PersonID: "p2", Type: entities.RelationFather},
		entities.Relationship{ID: "r2", PersonID: "p3", Type: entities.RelationChild},
	)
	p.MaidenName = "Vega"
	p.Bio = "Maestra"
	p.Birth = &entities.Event{
		ID:       "ev1",
		Type:     entities.EventBirth,
		Date:     &entities.DateInfo{Year: 1950, Display: "1950"},
		Location: &entities.Location{Name: "Quito"},
	}

	require.NoError(t, repo.PutPerson(ctx, p))

	got, err := repo.GetPerson(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Ana", got.FirstName)
	assert.Equal(t, "Vega", got.MaidenName)
	assert.Equal(t, "Maestra", got.Bio)
	assert.Equal(t, entities.GenderFemale, got.Gender)
	assert.True(t, got.IsLiving)
	assert.Equal(t, "tester", got.CreatedBy)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Birth)
	assert.Equal(t, 1950, got.Birth.Date.Year)
	assert.Equal(t, "Quito", got.Birth.Location.Name)
	assert.Nil(t, got.Death)

	// order and status survive
	assert.Equal(t, p.Relationships, got.Relationships)
}

func TestRepository_PutPerson_ReplacesRelationships(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	p := testPerson("p1", "Ana", entities.GenderFemale,
		entities.Relationship{ID: "r1", PersonID: "p2", Type: entities.RelationFather},
		entities.Relationship{ID: "r2", PersonID: "p3", Type: entities.RelationChild},
	)
	require.NoError(t, repo.PutPerson(ctx, p))

	p.FirstName = "Anita"
	p.Relationships = []entities.Relationship{
		{ID: "r2", PersonID: "p3", Type: entities.RelationChild},
	}
	require.NoError(t, repo.PutPerson(ctx, p))

	got, err := repo.GetPerson(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Anita", got.FirstName)
	assert.Equal(t, p.Relationships, got.Relationships)
}

func TestRepository_PutPerson_DefaultsTimestamps(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	oldNow := timeNow
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = oldNow }()

	p := testPerson("p1", "Ana", entities.GenderFemale)
	p.CreatedAt = time.Time{}
	p.UpdatedAt = time.Time{}
	require.NoError(t, repo.PutPerson(ctx, p))

	got, err := repo.GetPerson(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got.CreatedAt))
	assert.True(t, fixed.Equal(got.UpdatedAt))
}

func TestRepository_PutPerson_RequiresID(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.PutPerson(context.Background(), &entities.Person{FirstName: "Ana"})
	require.Error(t, err)
}

func TestRepository_ListPeople(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.PutPerson(ctx, testPerson("zeta", "Zoe", entities.GenderFemale,
		entities.Relationship{ID: "r1", PersonID: "alpha", Type: entities.RelationSpouse},
	)))
	require.NoError(t, repo.PutPerson(ctx, testPerson("alpha", "Alan", entities.GenderMale,
		entities.Relationship{ID: "r2", PersonID: "zeta", Type: entities.RelationSpouse},
	)))
	// re-putting keeps creation order
	require.NoError(t, repo.PutPerson(ctx, testPerson("zeta", "Zoe", entities.GenderFemale,
		entities.Relationship{ID: "r1", PersonID: "alpha", Type: entities.RelationSpouse},
	)))

	people, err := repo.ListPeople(ctx)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "zeta", people[0].ID)
	assert.Equal(t, "alpha", people[1].ID)
	require.Len(t, people[0].Relationships, 1)
	assert.Equal(t, "alpha", people[0].Relationships[0].PersonID)
	require.Len(t, people[1].Relationships, 1)
	assert.Equal(t, "zeta", people[1].Relationships[0].PersonID)
}

func TestRepository_ListPeople_Empty(t *testing.T) {
	repo := setupTestRepo(t)

	people, err := repo.ListPeople(context.Background())
	require.NoError(t, err)
	assert.Empty(t, people)
}

func TestRepository_DeletePerson(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.PutPerson(ctx, testPerson("p1", "Ana", entities.GenderFemale,
		entities.Relationship{ID: "r1", PersonID: "p2", Type: entities.RelationFather},
	)))

	t.Run("existing", func(t *testing.T) {
		require.NoError(t, repo.DeletePerson(ctx, "p1"))

		got, err := repo.GetPerson(ctx, "p1")
		require.NoError(t, err)
		assert.Nil(t, got)

		var count int
		err = repo.db.QueryRow(`SELECT COUNT(*) FROM relationships WHERE owner_id = ?`, "p1").Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("missing", func(t *testing.T) {
		err := repo.DeletePerson(ctx, "p1")
		require.Error(t, err)
		assert.True(t, entities.IsNotFound(err))
	})
}

func TestRepository_AuditLog(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.LogAction(ctx, entities.AuditLinkAdd, "p1", map[string]any{"kind": "SPOUSE"}))
	require.NoError(t, repo.LogAction(ctx, entities.AuditLinkRemove, "p1", nil))
	require.NoError(t, repo.LogAction(ctx, entities.AuditRepairHeal, "", map[string]any{"fixes": 2}))

	t.Run("by person", func(t *testing.T) {
		entries, err := repo.FindAuditLog(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, entities.AuditLinkRemove, entries[0].Action)
		assert.Nil(t, entries[0].Details)
		assert.Equal(t, entities.AuditLinkAdd, entries[1].Action)
		assert.Equal(t, "SPOUSE", entries[1].Details["kind"])
		assert.Equal(t, "p1", entries[1].PersonID)
	})

	t.Run("by action", func(t *testing.T) {
		entries, err := repo.FindAuditLogByAction(ctx, entities.AuditRepairHeal, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Empty(t, entries[0].PersonID)
		assert.EqualValues(t, 2, entries[0].Details["fixes"])
	})

	t.Run("limit", func(t *testing.T) {
		require.NoError(t, repo.LogAction(ctx, entities.AuditLinkAdd, "p2", nil))
		entries, err := repo.FindAuditLogByAction(ctx, entities.AuditLinkAdd, 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}
