// Package submission sequences the Classroom and Drive calls behind each
// user-facing operation: listing courses, listing assignments with the
// user's submission status, and submitting a file.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/classroom/v1"

	"github.com/tonimelisma/classroom-go/internal/ledger"
)

// Submission states.
const (
	StatusNotSubmitted = "NOT_SUBMITTED" // no submission exists yet
	StateTurnedIn      = "TURNED_IN"
)

// DefaultStatusWorkers bounds concurrent status lookups when unset.
const DefaultStatusWorkers = 4

// Coursework is the subset of the Classroom API the workflow uses.
type Coursework interface {
	ListCourses(ctx context.Context) ([]*classroom.Course, error)
	ListCourseWork(ctx context.Context, courseID string) ([]*classroom.CourseWork, error)
	ListMySubmissions(ctx context.Context, courseID, courseWorkID string) ([]*classroom.StudentSubmission, error)
	CreateSubmission(ctx context.Context, courseID, courseWorkID string) (*classroom.StudentSubmission, error)
	AddAttachment(ctx context.Context, courseID, courseWorkID, submissionID, fileID, title string) error
	TurnIn(ctx context.Context, courseID, courseWorkID, submissionID string) error
}

// FileStore uploads file content and returns the remote file ID.
type FileStore interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

// Recorder persists submit attempts.
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
}

// Course is an enrolled course.
type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assignment is a coursework item with the user's submission status.
type Assignment struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Due    string `json:"due"`
	Status string `json:"status"`
}

// SubmitRequest identifies the assignment and the staged upload.
type SubmitRequest struct {
	CourseID     string
	AssignmentID string
	FileName     string // original name, used for the Drive file and attachment title
	Path         string // staged local copy
}

// SubmitResult describes a completed submission.
type SubmitResult struct {
	AssignmentID string `json:"assignment_id"`
	SubmissionID string `json:"submission_id"`
	FileID       string `json:"file_id"`
	Created      bool   `json:"created"` // submission was created in DRAFT by this call
}

// Options tunes a Service.
type Options struct {
	StatusWorkers int
	Recorder      Recorder // nil disables the ledger
}

// Service runs the workflows against one set of bound clients.
type Service struct {
	cw     Coursework
	files  FileStore
	opts   Options
	logger *slog.Logger
}

// New creates a Service.
func New(cw Coursework, files FileStore, opts Options, logger *slog.Logger) *Service {
	if opts.StatusWorkers <= 0 {
		opts.StatusWorkers = DefaultStatusWorkers
	}

	return &Service{cw: cw, files: files, opts: opts, logger: logger}
}

// Courses lists the user's courses (first page only).
func (s *Service) Courses(ctx context.Context) ([]Course, error) {
	list, err := s.cw.ListCourses(ctx)
	if err != nil {
		return nil, upstream("list courses", err)
	}

	courses := make([]Course, 0, len(list))

	for _, c := range list {
		if c == nil {
			continue
		}

		courses = append(courses, Course{ID: c.Id, Name: c.Name})
	}

	return courses, nil
}

// Assignments lists a course's coursework with the user's submission status
// for each item. Status lookups run concurrently; the result keeps listing
// order.
func (s *Service) Assignments(ctx context.Context, courseID string) ([]Assignment, error) {
	if courseID == "" {
		return nil, fmt.Errorf("%w: course id is required", ErrBadRequest)
	}

	work, err := s.cw.ListCourseWork(ctx, courseID)
	if err != nil {
		return nil, upstream("list coursework", err)
	}

	work = compact(work)
	out := make([]Assignment, len(work))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.StatusWorkers)

	for i, w := range work {
		g.Go(func() error {
			status, err := s.status(gctx, courseID, w.Id)
			if err != nil {
				return err
			}

			out[i] = Assignment{
				ID:     w.Id,
				Title:  w.Title,
				Due:    FormatDue(dueDateFrom(w.DueDate)),
				Status: status,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("listed assignments",
		slog.String("course_id", courseID),
		slog.Int("count", len(out)),
	)

	return out, nil
}

// status is the state of the user's first submission, or NOT_SUBMITTED.
func (s *Service) status(ctx context.Context, courseID, courseWorkID string) (string, error) {
	subs, err := s.cw.ListMySubmissions(ctx, courseID, courseWorkID)
	if err != nil {
		return "", upstream("list submissions", err)
	}

	subs = compact(subs)
	if len(subs) == 0 {
		return StatusNotSubmitted, nil
	}

	return subs[0].State, nil
}

// Submit uploads the staged file, attaches it to the user's submission
// (creating a DRAFT one when none exists) and turns it in. A submission that
// is already TURNED_IN is rejected with ErrAlreadyTurnedIn after the upload
// and before any change to the submission.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (result *SubmitResult, err error) {
	if req.CourseID == "" || req.AssignmentID == "" || req.FileName == "" {
		return nil, fmt.Errorf("%w: course id, assignment id and file are required", ErrBadRequest)
	}

	entry := ledger.Entry{
		CourseID:     req.CourseID,
		AssignmentID: req.AssignmentID,
		FileName:     req.FileName,
	}

	defer func() {
		s.record(ctx, entry, err)
	}()

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("submission: opening staged upload: %w", err)
	}
	defer f.Close()

	fileID, err := s.files.Upload(ctx, req.FileName, f)
	if err != nil {
		return nil, upstream("upload", err)
	}

	entry.FileID = fileID

	sub, created, err := s.findOrCreate(ctx, req.CourseID, req.AssignmentID)
	if err != nil {
		return nil, err
	}

	entry.SubmissionID = sub.Id

	if err := s.cw.AddAttachment(ctx, req.CourseID, req.AssignmentID, sub.Id, fileID, req.FileName); err != nil {
		return nil, upstream("add attachment", err)
	}

	if err := s.cw.TurnIn(ctx, req.CourseID, req.AssignmentID, sub.Id); err != nil {
		return nil, upstream("turn in", err)
	}

	s.logger.Info("assignment submitted",
		slog.String("course_id", req.CourseID),
		slog.String("assignment_id", req.AssignmentID),
		slog.String("submission_id", sub.Id),
		slog.String("file_id", fileID),
	)

	return &SubmitResult{
		AssignmentID: req.AssignmentID,
		SubmissionID: sub.Id,
		FileID:       fileID,
		Created:      created,
	}, nil
}

// findOrCreate returns the user's first submission, creating a DRAFT one if
// none exists. An existing TURNED_IN submission is an error.
func (s *Service) findOrCreate(ctx context.Context, courseID, courseWorkID string) (*classroom.StudentSubmission, bool, error) {
	subs, err := s.cw.ListMySubmissions(ctx, courseID, courseWorkID)
	if err != nil {
		return nil, false, upstream("list submissions", err)
	}

	if subs = compact(subs); len(subs) > 0 {
		if subs[0].State == StateTurnedIn {
			return nil, false, fmt.Errorf("%w: %s", ErrAlreadyTurnedIn, courseWorkID)
		}

		return subs[0], false, nil
	}

	sub, err := s.cw.CreateSubmission(ctx, courseID, courseWorkID)
	if err != nil {
		return nil, false, upstream("create submission", err)
	}

	if sub == nil || sub.Id == "" {
		return nil, false, upstream("create submission", errors.New("created submission has no id"))
	}

	return sub, true, nil
}

// record writes the attempt to the ledger. Failures are logged only; the
// ledger never decides the outcome of a submission.
func (s *Service) record(ctx context.Context, entry ledger.Entry, err error) {
	if s.opts.Recorder == nil {
		return
	}

	entry.Outcome = ledger.OutcomeSubmitted
	if err != nil {
		entry.Outcome = ledger.OutcomeFailed
		entry.Error = err.Error()
	}

	if _, recErr := s.opts.Recorder.Record(context.WithoutCancel(ctx), entry); recErr != nil {
		s.logger.Warn("recording submission in ledger failed",
			slog.String("assignment_id", entry.AssignmentID),
			slog.String("error", recErr.Error()),
		)
	}
}

// compact drops nil elements from an API list.
func compact[T any](in []*T) []*T {
	out := in[:0:0]

	for _, v := range in {
		if v != nil {
			out = append(out, v)
		}
	}

	return out
}
