// Package testutil provides shared environment helpers for the E2E tests,
// which drive the compiled binary and never link against internal/.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppName is the directory name used under every XDG base directory.
const AppName = "classroom-go"

// Credential files looked up in the .testdata/ directory. Both are optional;
// tests that talk to Google skip when either is missing.
const (
	ClientSecretsFile = "credentials.json"
	TokenFile         = "token.json"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// LiveCredentialDir returns moduleRoot/.testdata when it holds both the OAuth
// client file and a saved token, and "" otherwise.
func LiveCredentialDir(moduleRoot string) string {
	dir := filepath.Join(moduleRoot, ".testdata")

	for _, name := range []string{ClientSecretsFile, TokenFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return ""
		}
	}

	return dir
}

// CopyFile copies a file from src to dst with the given permissions, creating
// dst's directory. Crashes on failure because tests cannot proceed without
// the file.
func CopyFile(src, dst string, perm os.FileMode) {
	data, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot read %s: %v\n", src, err)
		os.Exit(1)
	}

	if mkErr := os.MkdirAll(filepath.Dir(dst), 0o700); mkErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: creating %s: %v\n", filepath.Dir(dst), mkErr)
		os.Exit(1)
	}

	if writeErr := os.WriteFile(dst, data, perm); writeErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: writing %s: %v\n", dst, writeErr)
		os.Exit(1)
	}
}
