package localstore

import (
	"os"
	"path/filepath"
)

// DBFileName is the database file inside a profile directory.
const DBFileName = "chronoquest.db"

// DefaultRoot returns the data root, ~/.chronoquest. It falls back to
// ./.chronoquest when the home directory is unavailable.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".chronoquest")
	}
	return filepath.Join(home, ".chronoquest")
}

// ProfileDir returns the directory holding a profile's data.
func ProfileDir(profile string) string {
	return filepath.Join(DefaultRoot(), "profiles", profile)
}

// ProfileDBPath returns the database path for a profile.
// Example: ProfileDBPath("work") -> ~/.chronoquest/profiles/work/chronoquest.db
func ProfileDBPath(profile string) string {
	return filepath.Join(ProfileDir(profile), DBFileName)
}

// DefaultConfigPath returns the YAML config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultRoot(), "config.yaml")
}
