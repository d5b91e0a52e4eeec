package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
)

func createTree(t *testing.T, basePath, name string) *config.Config {
	t.Helper()
	_, err := handlers.NewInitHandler(openPersonStore).Handle(context.Background(), basePath, name, "")
	require.NoError(t, err)

	cfg, err := config.Load(basePath)
	require.NoError(t, err)
	return cfg
}

func TestCreateTree_OpensSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	createTree(t, tmpDir, "Familia Rojas")

	_, err := os.Stat(config.SQLitePathForTree(tmpDir, "Familia Rojas"))
	require.NoError(t, err)

	trees, err := config.LoadTrees(tmpDir)
	require.NoError(t, err)
	entry, err := trees.Get("Familia Rojas")
	require.NoError(t, err)
	assert.Equal(t, "familia_rojas", entry.Scope)
}

func TestPurgeTree(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	cfg := createTree(t, tmpDir, "rojas")

	store, audit, err := openStore(ctx, cfg, tmpDir, "rojas")
	require.NoError(t, err)
	assert.NotNil(t, audit)
	require.NoError(t, store.PutPerson(ctx, &entities.Person{ID: "p1", FirstName: "Ana", Gender: entities.GenderFemale}))
	require.NoError(t, store.Close())

	t.Run("refuses a tree with people", func(t *testing.T) {
		_, err := purgeTree(ctx, cfg, tmpDir, "rojas", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contains 1 people")

		trees, err := config.LoadTrees(tmpDir)
		require.NoError(t, err)
		assert.True(t, trees.Exists("rojas"))
	})

	t.Run("force removes everything", func(t *testing.T) {
		count, err := purgeTree(ctx, cfg, tmpDir, "rojas", true)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		trees, err := config.LoadTrees(tmpDir)
		require.NoError(t, err)
		assert.False(t, trees.Exists("rojas"))

		_, err = os.Stat(config.TreeDir(tmpDir, "rojas"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestPurgeTree_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := createTree(t, tmpDir, "rojas")

	_, err := purgeTree(context.Background(), cfg, tmpDir, "vega", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestResolveTree(t *testing.T) {
	one := &config.TreesConfig{Trees: map[string]config.TreeEntry{"rojas": {Scope: "rojas"}}}
	two := &config.TreesConfig{Trees: map[string]config.TreeEntry{"rojas": {}, "vega": {}}}
	none := &config.TreesConfig{Trees: map[string]config.TreeEntry{}}

	tests := []struct {
		name    string
		trees   *config.TreesConfig
		flag    string
		want    string
		wantErr string
	}{
		{name: "only tree", trees: one, want: "rojas"},
		{name: "explicit", trees: two, flag: "vega", want: "vega"},
		{name: "ambiguous", trees: two, wantErr: "--tree"},
		{name: "unknown", trees: two, flag: "lopez", wantErr: "not found"},
		{name: "none registered", trees: none, wantErr: "no trees registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTree(tt.trees, tt.flag)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenStore_UnsupportedDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "mongo"

	_, _, err := openStore(context.Background(), cfg, t.TempDir(), "rojas")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}
