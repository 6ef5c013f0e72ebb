//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/classroom-go/testutil"
)

var binaryPath string

func TestMain(m *testing.M) {
	moduleRoot := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(moduleRoot, ".env"))

	tmpDir, err := os.MkdirTemp("", "classroom-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmpDir, testutil.AppName)

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = moduleRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	cleanup := setupIsolation(moduleRoot)
	code := m.Run()

	cleanup()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

func runCLI(t *testing.T, args ...string) (string, string) {
	t.Helper()

	stdout, stderr, err := runCLIRaw(args...)
	if err != nil {
		t.Fatalf("CLI command %v failed: %v\nstdout: %s\nstderr: %s", args, err, stdout, stderr)
	}

	return stdout, stderr
}

func runCLIExpectError(t *testing.T, args ...string) string {
	t.Helper()

	stdout, stderr, err := runCLIRaw(args...)
	if err == nil {
		t.Fatalf("CLI command %v succeeded, expected failure\nstdout: %s", args, stdout)
	}

	return stderr
}

func runCLIRaw(args ...string) (string, string, error) {
	cmd := exec.Command(binaryPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	return stdout.String(), stderr.String(), err
}

// freeAddr reserves a loopback port and releases it for the server to bind.
func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	return addr
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()

	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, into), "body: %s", body)

	return resp.StatusCode
}

func TestE2E_ConfigInitAndShow(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")

	_, stderr := runCLI(t, "--config", cfgPath, "config", "init")
	assert.Contains(t, stderr, cfgPath)
	assert.FileExists(t, cfgPath)

	errOut := runCLIExpectError(t, "--config", cfgPath, "config", "init")
	assert.Contains(t, errOut, "already exists")

	stdout, _ := runCLI(t, "--config", cfgPath, "--json", "config", "show")

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, cfgPath, cfg["config_path"])
	assert.Equal(t, "127.0.0.1:5000", cfg["listen_addr"])
}

func TestE2E_HistoryStartsEmpty(t *testing.T) {
	stdout, _ := runCLI(t, "--json", "history")

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	assert.Empty(t, entries)
}

func TestE2E_SubmitRejectsMissingFile(t *testing.T) {
	stderr := runCLIExpectError(t, "submit", "--course", "c1", "--assignment", "a1",
		filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Contains(t, stderr, "missing.pdf")
}

func TestE2E_ServeLifecycle(t *testing.T) {
	addr := freeAddr(t)
	base := "http://" + addr

	cmd := exec.Command(binaryPath, "serve", "--listen", addr)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Start())

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	t.Cleanup(func() {
		select {
		case <-exited:
		default:
			_ = cmd.Process.Kill()
			<-exited
		}
	})

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz") //nolint:noctx // polling
		if err != nil {
			return false
		}
		resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond, "server never became healthy; stderr: %s", stderr.String())

	var redirect map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, base+"/check_redirect_uri", &redirect))

	if liveCredentialDir == "" {
		assert.Equal(t, "credentials.json not found", redirect["error"])
	} else {
		assert.Contains(t, redirect, "configured_redirect_uris")
	}

	var history struct {
		Submissions []map[string]any `json:"submissions"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, base+"/submissions", &history))

	var missing map[string]any
	assert.Equal(t, http.StatusNotFound, getJSON(t, base+"/no-such-route", &missing))

	// The PID file lock allows one server per data directory.
	errOut := runCLIExpectError(t, "serve", "--listen", freeAddr(t))
	assert.Contains(t, errOut, "already running")

	require.NoError(t, cmd.Process.Signal(os.Interrupt))

	select {
	case err := <-exited:
		require.NoError(t, err, "stderr: %s", stderr.String())
	case <-time.After(15 * time.Second):
		t.Fatal("server did not exit after SIGINT")
	}

	assert.NoFileExists(t, filepath.Join(isolatedDataDir, "classroom-go.pid"))
}

func TestE2E_Live_CoursesAndAssignments(t *testing.T) {
	if liveCredentialDir == "" {
		t.Skip("no credentials in .testdata/")
	}

	stdout, _ := runCLI(t, "--json", "courses")

	var courses []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &courses))

	if len(courses) == 0 {
		t.Skip("test account has no active courses")
	}

	courseID, ok := courses[0]["id"].(string)
	require.True(t, ok)

	stdout, _ = runCLI(t, "--json", "assignments", courseID)

	var assignments []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &assignments))

	for _, a := range assignments {
		assert.NotEmpty(t, a["status"])
		assert.NotEmpty(t, a["due"])
	}
}
