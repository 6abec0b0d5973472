// Package paths resolves configuration and data directory locations for the
// mistfall CLI and for Connect's default persistent-backend location.
package paths

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/mistfall/mistfall/pkg/schema"
)

// CWD-relative directory names used when no override is active.
const (
	DefaultConfigDirName = ".mistfall"
	DefaultDataDirName   = ".mistfall-db"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "MISTFALL_CONFIG_DIR"
	EnvDataDir   = "MISTFALL_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/mistfall (fallback ~/.config/mistfall)
// macOS:   ~/Library/Application Support/mistfall
// Windows: %APPDATA%/mistfall
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "mistfall"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "mistfall"), nil
	default:
		// macOS and Windows use os.UserConfigDir which returns
		// ~/Library/Application Support on macOS and %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "mistfall"), nil
	}
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/mistfall (fallback ~/.local/share/mistfall)
// macOS:   ~/Library/Application Support/mistfall
// Windows: %APPDATA%/mistfall
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "mistfall"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "mistfall"), nil
	default:
		// macOS and Windows: same as config dir.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "mistfall"), nil
	}
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > MISTFALL_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > MISTFALL_DATA_DIR env > configYAMLValue > DefaultDataDirName under
// the current working directory. DefaultDataDir() is not consulted here.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	// CWD-relative default preserves current behavior.
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// DBPath resolves the on-disk database file for a schema within an already
// resolved data directory. dbName defaults to s.Name when empty. A schema
// declared under its own namespace (Namespace distinct from Name) nests its
// file under a namespace subdirectory of dataDir, so two schemas that
// happen to share a DBName don't collide on one file when pointed at the
// same data directory.
func DBPath(dataDir string, s *schema.Schema, dbName string) string {
	if dbName == "" {
		dbName = s.Name
	}
	if s.Namespace != "" && s.Namespace != s.Name {
		return filepath.Join(dataDir, s.Namespace, dbName+".db")
	}
	return filepath.Join(dataDir, dbName+".db")
}
