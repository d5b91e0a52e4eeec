package config

import (
	"fmt"
	"os"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# Raices Configuration

store:
  driver: sqlite   # sqlite or neo4j (or set RAICES_STORE)

# sqlite:
#   path: /custom/raices.db   # defaults to .raices/trees/<tree>/raices.db

neo4j:
  uri: bolt://localhost:7687
  user: neo4j
  # password: secret (or set NEO4J_PASSWORD env var)

server:
  port: "8080"
  env: development

tree:
  reject_cycles: true
  repair_concurrency: 4
  created_by: raices
`

// WriteDefault creates the .raices directory and writes a default config file.
func WriteDefault(basePath string) error {
	configDir := ConfigDir(basePath)
	configFile := ConfigFilePath(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Exists checks if a raices config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}
