package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// testTokenJSON is the canonical token response for tests.
const testTokenJSON = `{
	"access_token": "test-access-token",
	"token_type": "Bearer",
	"refresh_token": "test-refresh-token",
	"expires_in": 3600
}`

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockGoogle is a stand-in for Google's authorization and token endpoints.
type mockGoogle struct {
	URL         string
	tokenCalls  atomic.Int32
	lastGrant   atomic.Value // string
	authHandler http.HandlerFunc
}

// newMockGoogle starts a test server. tokenHandler controls the token
// endpoint; nil returns testTokenJSON. The authorize endpoint redirects to
// the redirect_uri with a code and the echoed state.
func newMockGoogle(t *testing.T, tokenHandler http.HandlerFunc) *mockGoogle {
	t.Helper()

	m := &mockGoogle{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /authorize", func(w http.ResponseWriter, r *http.Request) {
		if m.authHandler != nil {
			m.authHandler(w, r)
			return
		}

		q := r.URL.Query()
		http.Redirect(w, r, q.Get("redirect_uri")+"?code=test-auth-code&state="+q.Get("state"), http.StatusFound)
	})

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		m.tokenCalls.Add(1)

		if err := r.ParseForm(); err == nil {
			m.lastGrant.Store(r.PostForm.Get("grant_type"))
		}

		if tokenHandler != nil {
			tokenHandler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testTokenJSON))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	m.URL = srv.URL

	return m
}

func (m *mockGoogle) grant() string {
	v, _ := m.lastGrant.Load().(string)
	return v
}

// writeClientSecrets writes an installed-app credentials.json pointing at m.
func writeClientSecrets(t *testing.T, dir string, m *mockGoogle) string {
	t.Helper()

	body := map[string]any{
		"installed": map[string]any{
			"client_id":     "test-client-id",
			"client_secret": "test-client-secret",
			"auth_uri":      m.URL + "/authorize",
			"token_uri":     m.URL + "/token",
			"redirect_uris": []string{"http://localhost"},
		},
	}

	data, err := json.Marshal(body)
	require.NoError(t, err)

	path := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}
