// Package tokenfile is the credential store: it reads, writes and clears the
// single local file holding the user's Google OAuth2 token and granted scopes.
// Loading is self-healing. A file that cannot be decoded, or whose token has
// no refresh token, is deleted and reported as absent so the caller falls
// through to a fresh consent flow instead of failing forever.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// ErrInvalidCredential is returned by Save for a credential that must never
// reach disk (nil, or without an access token).
var ErrInvalidCredential = errors.New("tokenfile: refusing to save invalid credential")

// Credential is the on-disk format: the OAuth token plus the scopes that were
// requested when it was granted.
type Credential struct {
	Token  *oauth2.Token `json:"token"`
	Scopes []string      `json:"scopes,omitempty"`
}

// Valid reports whether the access token is present and unexpired.
func (c *Credential) Valid() bool {
	return c != nil && c.Token.Valid()
}

// Refreshable reports whether the credential carries a refresh token.
func (c *Credential) Refreshable() bool {
	return c != nil && c.Token != nil && c.Token.RefreshToken != ""
}

// HasScopes reports whether every required scope was granted. A credential
// saved without a scope list predates scope tracking and is accepted.
func (c *Credential) HasScopes(required []string) bool {
	if c == nil {
		return false
	}

	if len(c.Scopes) == 0 {
		return true
	}

	for _, s := range required {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}

	return true
}

// Load reads the credential at path. Returns (nil, nil) when the file does
// not exist, is not valid JSON, has no token, or has no refresh token. In the
// last three cases the file is removed first. Only unexpected read errors are
// returned.
func Load(path string, logger *slog.Logger) (*Credential, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("token file does not exist", slog.String("path", path))

		return nil, nil //nolint:nilnil // sentinel for "absent"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		logger.Warn("token file is not valid JSON, deleting",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		discard(path, logger)

		return nil, nil //nolint:nilnil // healed
	}

	if cred.Token == nil {
		logger.Warn("token file has no token field, deleting", slog.String("path", path))
		discard(path, logger)

		return nil, nil //nolint:nilnil // healed
	}

	if cred.Token.RefreshToken == "" {
		logger.Warn("refresh token not found in token file, deleting", slog.String("path", path))
		discard(path, logger)

		return nil, nil //nolint:nilnil // healed
	}

	return &cred, nil
}

// discard removes a corrupt token file. Failures are logged because the
// caller is already on the "absent" path and will overwrite the file on the
// next successful consent.
func discard(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("deleting token file failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// Save writes the credential atomically (write-to-temp + fsync + rename)
// with 0600 permissions. Never logs token values.
func Save(path string, cred *Credential) error {
	if cred == nil || cred.Token == nil || cred.Token.AccessToken == "" {
		return ErrInvalidCredential
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	// A power loss between close and rename must not leave an empty file at
	// the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Clear removes the credential file. A missing file is not an error.
func Clear(path string, logger *slog.Logger) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("no token file to remove", slog.String("path", path))

		return nil
	}

	if err != nil {
		return fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	logger.Info("removed token file", slog.String("path", path))

	return nil
}
