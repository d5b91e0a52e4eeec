package main

// Default limits for CLI commands.
const (
	DefaultHistoryLimit = 50
)

// validFormats lists the supported export formats.
var validFormats = []string{"json", "csv", "markdown"}

// validConflicts lists the supported --on-conflict values.
var validConflicts = []string{"skip", "overwrite"}

// contains checks if a string slice contains a value.
func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
