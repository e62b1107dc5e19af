package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755

	// HomeEnv overrides the configuration directory
	HomeEnv = "ORDERSTRESS_HOME"
)

var (
	// ConfigDir is the global configuration directory (~/.orderstress)
	ConfigDir string

	// DatabasePath is the SQLite database file for run history
	DatabasePath string

	// SettingsFile is the optional YAML settings file
	SettingsFile string
)

// Initialize sets up the configuration directory and paths
// It creates ~/.orderstress/ (or $ORDERSTRESS_HOME) if it doesn't exist
func Initialize() error {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".orderstress")
	}

	ConfigDir = dir
	DatabasePath = filepath.Join(ConfigDir, "orderstress.db")
	SettingsFile = filepath.Join(ConfigDir, "config.yaml")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}

	return nil
}

// LocalSettingsExists checks if there's a local orderstress.yaml in the working directory
func LocalSettingsExists() bool {
	_, err := os.Stat(LocalSettingsFile)
	return err == nil
}

// LocalSettingsFile is looked up in the working directory before the global one
const LocalSettingsFile = "orderstress.yaml"

// GetSettingsFilePath returns the settings file path (local or global)
func GetSettingsFilePath() string {
	if LocalSettingsExists() {
		return LocalSettingsFile
	}
	return SettingsFile
}
