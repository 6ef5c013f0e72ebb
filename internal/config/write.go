package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write, group and others read-only.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// ErrConfigExists is returned by WriteDefault when a file is already present.
var ErrConfigExists = errors.New("config file already exists")

// configTemplate is the file written by "config init". Every setting is
// present as a commented-out default so operators can discover each option
// without reading docs.
const configTemplate = `# classroom-go configuration

# ── Server ──
# listen_addr = "127.0.0.1:5000"
# status_workers = 4
# ledger = true

# ── Google sign-in ──
# Must match a redirect URI registered for the OAuth client.
# callback_addr = "localhost:8080"
# token_path = ""            # default: platform data directory
# client_secrets_path = ""   # default: credentials.json in the config directory
# consent_timeout = "5m"

# ── Uploads ──
# upload_dir = ""            # default: platform cache directory
# max_upload_size = "32MiB"
# upload_chunk_size = "8MiB"

# ── Logging ──
# log_level = "info"         # debug, info, warn, error
# log_file = ""
# log_format = "auto"        # auto, text, json

# ── Network ──
# connect_timeout = "10s"
# data_timeout = "60s"
# user_agent = "classroom-go/0.1"
`

// WriteDefault writes the commented template to path. An existing file is
// never overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it into place. A crash mid-write leaves either the old
// file or no file, never a truncated one.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
