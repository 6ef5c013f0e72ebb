package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	path := writeTestConfig(t, `
unknown_section = "value"
`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoad_UnknownKey_Typo(t *testing.T) {
	path := writeTestConfig(t, `
listen_adr = "127.0.0.1:5000"
`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), `did you mean "listen_addr"`)
}

func TestLoad_UnknownKey_Table(t *testing.T) {
	path := writeTestConfig(t, "[server]\nlisten_addr = \"127.0.0.1:5000\"\n")
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "server"`)
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, `
completely_unrelated_key = true
`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"token_pth", "token_path", 1},
		{"upload_chunksize", "upload_chunk_size", 1},
		{"completely_different", "xyz", 19},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch_Found(t *testing.T) {
	assert.Equal(t, "log_level", closestMatch("log_levl", knownKeys))
	assert.Equal(t, "upload_dir", closestMatch("uplod_dir", knownKeys))
}

func TestClosestMatch_NotFound(t *testing.T) {
	assert.Equal(t, "", closestMatch("completely_unrelated", knownKeys))
}

func TestKnownKeys_FollowStructTags(t *testing.T) {
	assert.Contains(t, knownKeys, "listen_addr")
	assert.Contains(t, knownKeys, "upload_chunk_size")
	assert.Contains(t, knownKeys, "user_agent")
	assert.NotContains(t, knownKeys, "ServerConfig")
	assert.IsNonDecreasing(t, knownKeys)
	assert.Len(t, knownKeys, 16)
}

func TestLoad_UnknownTableReportedOnce(t *testing.T) {
	path := writeTestConfig(t, "[server]\nlisten_addr = \"a\"\nport = 1\n")
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), `unknown config key "server"`))
}
