package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/classroom-go/internal/ledger"
	"github.com/tonimelisma/classroom-go/internal/submission"
	"github.com/tonimelisma/classroom-go/internal/tokenfile"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeAuth stands in for the authenticator.
type fakeAuth struct {
	mu          sync.Mutex
	hc          *http.Client
	clientErr   error
	consentErr  error
	consents    int
	clients     int
	secretsPath string
}

func (f *fakeAuth) Client(_ context.Context) (*http.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.clients++

	if f.clientErr != nil {
		return nil, f.clientErr
	}

	if f.hc != nil {
		return f.hc, nil
	}

	return http.DefaultClient, nil
}

func (f *fakeAuth) ForceConsent(_ context.Context) (*tokenfile.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.consents++

	if f.consentErr != nil {
		return nil, f.consentErr
	}

	return &tokenfile.Credential{}, nil
}

func (f *fakeAuth) CallbackRedirectURI() string { return "http://localhost:8080/" }

func (f *fakeAuth) ClientSecretsPath() string { return f.secretsPath }

// fakeWorkflow records calls and returns canned results.
type fakeWorkflow struct {
	courses     []submission.Course
	assignments []submission.Assignment
	err         error
	panicMsg    string

	gotCourseID string
	submitted   []submission.SubmitRequest
	stagedData  string // content of the staged file at Submit time
}

func (f *fakeWorkflow) Courses(_ context.Context) ([]submission.Course, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}

	return f.courses, f.err
}

func (f *fakeWorkflow) Assignments(_ context.Context, courseID string) ([]submission.Assignment, error) {
	f.gotCourseID = courseID

	return f.assignments, f.err
}

func (f *fakeWorkflow) Submit(_ context.Context, req submission.SubmitRequest) (*submission.SubmitResult, error) {
	f.submitted = append(f.submitted, req)

	data, err := os.ReadFile(req.Path)
	if err == nil {
		f.stagedData = string(data)
	}

	if f.err != nil {
		return nil, f.err
	}

	return &submission.SubmitResult{AssignmentID: req.AssignmentID, SubmissionID: "s1", FileID: "f1"}, nil
}

func staticWorkflow(wf Workflow) WorkflowFactory {
	return func(context.Context, *http.Client) (Workflow, error) {
		return wf, nil
	}
}

// fakeHistory serves canned ledger entries.
type fakeHistory struct {
	entries  []ledger.Entry
	gotLimit int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]ledger.Entry, error) {
	f.gotLimit = limit

	return f.entries, nil
}

type testServer struct {
	srv       *Server
	auth      *fakeAuth
	uploadDir string
}

func newTestServer(t *testing.T, wf Workflow, history History) *testServer {
	t.Helper()

	fa := &fakeAuth{secretsPath: filepath.Join(t.TempDir(), "credentials.json")}
	uploadDir := filepath.Join(t.TempDir(), "uploads")

	srv := New(Deps{
		Auth:        fa,
		NewWorkflow: staticWorkflow(wf),
		History:     history,
		UploadDir:   uploadDir,
	}, testLogger(t))

	return &testServer{srv: srv, auth: fa, uploadDir: uploadDir}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)

	return rec
}

// scratchEntries lists what is left under the upload directory.
func (ts *testServer) scratchEntries(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(ts.uploadDir)
	if os.IsNotExist(err) {
		return nil
	}

	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}

// multipartRequest builds a POST /submit request. An empty fileName omits
// the file part.
func multipartRequest(t *testing.T, fields map[string]string, fileName, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)

		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/submit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())

	return out
}
