package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrClientSecretsMissing means the operator has not placed the OAuth client
// file (credentials.json) at the configured path.
var ErrClientSecretsMissing = errors.New("credentials.json not found")

// ErrClientSecretsInvalid wraps a client secrets file that exists but cannot
// be parsed into an OAuth client configuration.
var ErrClientSecretsInvalid = errors.New("auth: invalid client secrets file")

// CallbackRedirectURI is the redirect the consent flow registers with Google
// for a callback server bound to addr.
func CallbackRedirectURI(addr string) string {
	return "http://" + addr + callbackPath
}

// LoadClientConfig reads the Google client secrets file ("installed" or "web"
// format) and returns an OAuth2 config for the given scopes whose redirect
// points at the local callback address.
func LoadClientConfig(path, callbackAddr string, scopes []string) (*oauth2.Config, error) {
	data, err := readClientSecrets(path)
	if err != nil {
		return nil, err
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrClientSecretsInvalid, path, err)
	}

	cfg.RedirectURL = CallbackRedirectURI(callbackAddr)

	return cfg, nil
}

// clientSecretsFile is the subset of the Google client secrets format needed
// to report registered redirect URIs.
type clientSecretsFile struct {
	Web       *clientSecretsSection `json:"web"`
	Installed *clientSecretsSection `json:"installed"`
}

type clientSecretsSection struct {
	RedirectURIs []string `json:"redirect_uris"`
}

// ConfiguredRedirectURIs returns the redirect URIs registered in the client
// secrets file: the "web" section's list, falling back to "installed". A file
// with neither yields an empty, non-nil slice.
func ConfiguredRedirectURIs(path string) ([]string, error) {
	data, err := readClientSecrets(path)
	if err != nil {
		return nil, err
	}

	var f clientSecretsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrClientSecretsInvalid, path, err)
	}

	switch {
	case f.Web != nil && len(f.Web.RedirectURIs) > 0:
		return f.Web.RedirectURIs, nil
	case f.Installed != nil && len(f.Installed.RedirectURIs) > 0:
		return f.Installed.RedirectURIs, nil
	default:
		return []string{}, nil
	}
}

// ClientSecretsPresent reports whether a client secrets file exists at path.
func ClientSecretsPresent(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

func readClientSecrets(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrClientSecretsMissing
	}

	if err != nil {
		return nil, fmt.Errorf("auth: reading client secrets %s: %w", path, err)
	}

	return data, nil
}
