package submission

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/classroom/v1"

	"github.com/tonimelisma/classroom-go/internal/ledger"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeCoursework is an in-memory Classroom. Calls are recorded in order.
type fakeCoursework struct {
	mu sync.Mutex

	courses     []*classroom.Course
	work        map[string][]*classroom.CourseWork        // courseID -> items
	submissions map[string][]*classroom.StudentSubmission // courseWorkID -> subs
	errs        map[string]error                          // method -> forced error

	calls       []string
	attachments map[string][]string // submissionID -> file IDs
	nextID      int
}

func newFakeCoursework() *fakeCoursework {
	return &fakeCoursework{
		work:        map[string][]*classroom.CourseWork{},
		submissions: map[string][]*classroom.StudentSubmission{},
		errs:        map[string]error{},
		attachments: map[string][]string{},
	}
}

func (f *fakeCoursework) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)

	return f.errs[call]
}

func (f *fakeCoursework) callsNamed(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, c := range f.calls {
		if c == name {
			n++
		}
	}

	return n
}

func (f *fakeCoursework) ListCourses(_ context.Context) ([]*classroom.Course, error) {
	if err := f.record("ListCourses"); err != nil {
		return nil, err
	}

	return f.courses, nil
}

func (f *fakeCoursework) ListCourseWork(_ context.Context, courseID string) ([]*classroom.CourseWork, error) {
	if err := f.record("ListCourseWork"); err != nil {
		return nil, err
	}

	return f.work[courseID], nil
}

func (f *fakeCoursework) ListMySubmissions(_ context.Context, _, courseWorkID string) ([]*classroom.StudentSubmission, error) {
	if err := f.record("ListMySubmissions"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.submissions[courseWorkID], nil
}

func (f *fakeCoursework) CreateSubmission(_ context.Context, _, courseWorkID string) (*classroom.StudentSubmission, error) {
	if err := f.record("CreateSubmission"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	sub := &classroom.StudentSubmission{Id: fmt.Sprintf("created-%d", f.nextID), State: "DRAFT"}
	f.submissions[courseWorkID] = append(f.submissions[courseWorkID], sub)

	return sub, nil
}

func (f *fakeCoursework) AddAttachment(_ context.Context, _, _, submissionID, fileID, _ string) error {
	if err := f.record("AddAttachment"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.attachments[submissionID] = append(f.attachments[submissionID], fileID)

	return nil
}

func (f *fakeCoursework) TurnIn(_ context.Context, _, courseWorkID, submissionID string) error {
	if err := f.record("TurnIn"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.submissions[courseWorkID] {
		if s.Id == submissionID {
			s.State = StateTurnedIn
		}
	}

	return nil
}

// fakeFiles records uploads.
type fakeFiles struct {
	mu       sync.Mutex
	uploads  map[string]string // name -> content
	err      error
	returnID string
}

func (f *fakeFiles) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploads == nil {
		f.uploads = map[string]string{}
	}

	f.uploads[name] = string(data)

	if f.returnID != "" {
		return f.returnID, nil
	}

	return "drive-" + name, nil
}

// fakeRecorder collects ledger entries.
type fakeRecorder struct {
	entries []ledger.Entry
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	if r.err != nil {
		return ledger.Entry{}, r.err
	}

	r.entries = append(r.entries, e)

	return e, nil
}

func stageFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}
