package config

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveForTest(t *testing.T, content string) *Resolved {
	t.Helper()

	path := writeTestConfig(t, content)
	resolved, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path}, testLogger(t))
	require.NoError(t, err)

	return resolved
}

func TestRenderEffective_Defaults(t *testing.T) {
	resolved := resolveForTest(t, "")

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(resolved, &buf))

	output := buf.String()
	assert.Contains(t, output, resolved.ConfigPath)
	assert.Contains(t, output, "[server]")
	assert.Contains(t, output, "[auth]")
	assert.Contains(t, output, "[upload]")
	assert.Contains(t, output, "[logging]")
	assert.Contains(t, output, "[network]")
	assert.Contains(t, output, `"127.0.0.1:5000"`)
	assert.Contains(t, output, `"5m0s"`)
	assert.NotContains(t, output, "log_file")
}

func TestRenderEffective_LedgerDisabled(t *testing.T) {
	resolved := resolveForTest(t, "ledger = false")

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(resolved, &buf))
	assert.Contains(t, buf.String(), "ledger         = disabled")
}

func TestRenderEffective_LogFileShown(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "classroom-go.log")
	resolved := resolveForTest(t, `log_file = "`+logPath+`"`)

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(resolved, &buf))
	assert.Contains(t, buf.String(), "log_file")
	assert.Contains(t, buf.String(), logPath)
}

// failWriter is a writer that always fails, used to exercise error paths
// in the errWriter pattern.
type failWriter struct{}

var errWriteFailed = errors.New("write failed")

func (failWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

func TestRenderEffective_WriteError(t *testing.T) {
	resolved := resolveForTest(t, "")

	err := RenderEffective(resolved, failWriter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errWriteFailed)
}
