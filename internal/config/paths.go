package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "classroom-go"

// File names inside the platform directories.
const (
	configFileName        = "config.toml"
	clientSecretsFileName = "credentials.json"
	tokenFileName         = "token.json"
	ledgerFileName        = "ledger.db"
	pidFileName           = "classroom-go.pid"
	uploadsDirName        = "uploads"
)

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/classroom-go).
// On macOS, uses ~/Library/Application Support/classroom-go per Apple guidelines.
// Other platforms fall back to ~/.config/classroom-go.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// linuxConfigDir returns the XDG-compliant config directory for Linux.
func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultDataDir returns the platform-specific directory for application data
// (token file, submission ledger, PID file).
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/classroom-go).
// On macOS, uses ~/Library/Application Support/classroom-go (macOS convention
// collapses config and data into one directory).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// linuxDataDir returns the XDG-compliant data directory for Linux.
func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".local", "share", appName)
}

// DefaultCacheDir returns the platform-specific directory for cache files.
// On Linux, respects XDG_CACHE_HOME (defaults to ~/.cache/classroom-go).
// On macOS, uses ~/Library/Caches/classroom-go per Apple guidelines.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxCacheDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Caches", appName)
	default:
		return filepath.Join(home, ".cache", appName)
	}
}

// linuxCacheDir returns the XDG-compliant cache directory for Linux.
func linuxCacheDir(home string) string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".cache", appName)
}

// DefaultConfigPath returns the full path to the default config file.
// This is used as the fallback when neither CLASSROOM_GO_CONFIG nor
// --config is specified.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// defaultIn joins name onto dir, returning "" when the platform directory
// could not be determined.
func defaultIn(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}

// DefaultClientSecretsPath is where the operator drops the OAuth client
// file downloaded from the Google Cloud console.
func DefaultClientSecretsPath() string {
	return defaultIn(DefaultConfigDir(), clientSecretsFileName)
}

// DefaultTokenPath is the credential file location.
func DefaultTokenPath() string {
	return defaultIn(DefaultDataDir(), tokenFileName)
}

// DefaultLedgerPath is the submission ledger database location.
func DefaultLedgerPath() string {
	return defaultIn(DefaultDataDir(), ledgerFileName)
}

// DefaultPIDPath is the PID file held by a running "serve".
func DefaultPIDPath() string {
	return defaultIn(DefaultDataDir(), pidFileName)
}

// DefaultUploadDir is the scratch directory for staged uploads.
func DefaultUploadDir() string {
	return defaultIn(DefaultCacheDir(), uploadsDirName)
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}
