// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for raices configuration.
	DefaultConfigDir = ".raices"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultTreesFile is the default trees file name.
	DefaultTreesFile = "trees.yaml"
	// DefaultEnvFile is loaded into the environment before overrides apply.
	DefaultEnvFile = ".env"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverNeo4j  = "neo4j"
)

// EnvProduction selects production logging and gin release mode.
const EnvProduction = "production"

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	Store  StoreConfig  `yaml:"store,omitempty"`
	SQLite SQLiteConfig `yaml:"sqlite,omitempty"`
	Neo4j  Neo4jConfig  `yaml:"neo4j,omitempty"`
	Server ServerConfig `yaml:"server,omitempty"`
	Tree   TreeConfig   `yaml:"tree,omitempty"`
}

// StoreConfig selects the person store backend.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite person store.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database.
	// When empty, the per-tree path from SQLitePathForTree is used.
	Path string `yaml:"path,omitempty"`
}

// Neo4jConfig holds configuration for the Neo4j person store.
type Neo4jConfig struct {
	URI      string `yaml:"uri,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// ServerConfig holds configuration for the HTTP API.
type ServerConfig struct {
	Port string `yaml:"port,omitempty"`
	Env  string `yaml:"env,omitempty"`
}

// TreeConfig holds editing rules shared by every tree.
type TreeConfig struct {
	RejectCycles      bool   `yaml:"reject_cycles"`
	RepairConcurrency int    `yaml:"repair_concurrency,omitempty"`
	PruneDangling     bool   `yaml:"prune_dangling,omitempty"`
	CreatedBy         string `yaml:"created_by,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverSQLite,
		},
		Neo4j: Neo4jConfig{
			URI:  "bolt://localhost:7687",
			User: "neo4j",
		},
		Server: ServerConfig{
			Port: "8080",
			Env:  "development",
		},
		Tree: TreeConfig{
			RejectCycles:      true,
			RepairConcurrency: 4,
			CreatedBy:         "raices",
		},
	}
}

// Load loads configuration from the .raices directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'raices trees create' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// A missing .env is fine
	if err := godotenv.Load(filepath.Join(basePath, DefaultEnvFile)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAICES_STORE"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("NEO4J_URI"); v != "" {
		c.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USER"); v != "" {
		c.Neo4j.User = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" && c.Neo4j.Password == "" {
		c.Neo4j.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Server.Env = v
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverNeo4j:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("neo4j.uri is required when store.driver is %s", DriverNeo4j)
		}
	default:
		return fmt.Errorf("unknown store driver %q (valid: %s, %s)", c.Store.Driver, DriverSQLite, DriverNeo4j)
	}
	if c.Tree.RepairConcurrency < 0 {
		return fmt.Errorf("tree.repair_concurrency must not be negative")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.IsProduction()
}

// IsProduction reports whether env selects production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Env == EnvProduction
}

// ConfigDir returns the path to the .raices config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// TreesFilePath returns the path to the trees file.
func TreesFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultTreesFile)
}

// SanitizeTreeName converts a tree name to a safe directory and scope name.
func SanitizeTreeName(name string) string {
	name = strings.ToLower(name)

	// Spaces and hyphens become underscores
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	name = reNonAlphanumeric.ReplaceAllString(name, "")
	name = reMultipleUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		return "default"
	}

	return name
}

// TreeDir returns the directory path for a given tree.
func TreeDir(basePath, treeName string) string {
	return filepath.Join(basePath, DefaultConfigDir, "trees", SanitizeTreeName(treeName))
}

// SQLitePathForTree returns the SQLite database path for a given tree.
func SQLitePathForTree(basePath, treeName string) string {
	return filepath.Join(TreeDir(basePath, treeName), "raices.db")
}

// SQLitePath returns the configured database path, or the per-tree default.
func (c *Config) SQLitePath(basePath, treeName string) string {
	if c.SQLite.Path != "" {
		return c.SQLite.Path
	}
	return SQLitePathForTree(basePath, treeName)
}
