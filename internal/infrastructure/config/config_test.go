package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeTreeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple lowercase", input: "ruiz", expected: "ruiz"},
		{name: "uppercase converted", input: "Ruiz", expected: "ruiz"},
		{name: "spaces to underscores", input: "familia ruiz", expected: "familia_ruiz"},
		{name: "hyphens to underscores", input: "ruiz-paz", expected: "ruiz_paz"},
		{name: "special characters removed", input: "ruiz@paz!", expected: "ruizpaz"},
		{name: "consecutive underscores collapsed", input: "ruiz--paz", expected: "ruiz_paz"},
		{name: "leading trailing underscores trimmed", input: "-ruiz-", expected: "ruiz"},
		{name: "empty string returns default", input: "", expected: "default"},
		{name: "only special chars returns default", input: "!!!", expected: "default"},
		{name: "complex mixed input", input: "Ruiz-Paz (Rama 2)", expected: "ruiz_paz_rama_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeTreeName(tt.input))
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Tree.RejectCycles)
	assert.Equal(t, 4, cfg.Tree.RepairConcurrency)
	assert.False(t, cfg.IsProduction())
	require.NoError(t, cfg.Validate())
}

func TestPaths(t *testing.T) {
	base := "/home/user/project"
	assert.Equal(t, "/home/user/project/.raices", ConfigDir(base))
	assert.Equal(t, "/home/user/project/.raices/config.yaml", ConfigFilePath(base))
	assert.Equal(t, "/home/user/project/.raices/trees.yaml", TreesFilePath(base))
	assert.Equal(t, "/home/user/project/.raices/trees/familia_ruiz/raices.db", SQLitePathForTree(base, "Familia Ruiz"))

	cfg := Default()
	assert.Equal(t, SQLitePathForTree(base, "x"), cfg.SQLitePath(base, "x"))
	cfg.SQLite.Path = "/tmp/custom.db"
	assert.Equal(t, "/tmp/custom.db", cfg.SQLitePath(base, "x"))
}

func TestLoad_DefaultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))
	assert.True(t, Exists(dir))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.True(t, cfg.Tree.RejectCycles)
	assert.Equal(t, "raices", cfg.Tree.CreatedBy)

	err = WriteDefault(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := "tree:\n  reject_cycles: false\n  repair_concurrency: 9\nserver:\n  env: production\n"
	require.NoError(t, os.MkdirAll(ConfigDir(dir), 0755))
	require.NoError(t, os.WriteFile(ConfigFilePath(dir), []byte(yaml), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.Tree.RejectCycles)
	assert.Equal(t, 9, cfg.Tree.RepairConcurrency)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverSQLite, cfg.Store.Driver, "unset keys keep defaults")
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))
	t.Setenv("RAICES_STORE", DriverNeo4j)
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("PORT", "9090")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DriverNeo4j, cfg.Store.Driver)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultEnvFile), []byte("NEO4J_USER=genealogist\n"), 0600))
	// Registered so t.Setenv restores the variable godotenv sets.
	t.Setenv("NEO4J_USER", "")
	require.NoError(t, os.Unsetenv("NEO4J_USER"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "genealogist", cfg.Neo4j.User)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "postgres"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.Driver = DriverNeo4j
	cfg.Neo4j.URI = ""
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tree.RepairConcurrency = -1
	require.Error(t, cfg.Validate())
}
