// Package coursework binds a credential to the Google Classroom v1 API and
// exposes the handful of calls the submission workflow needs. Each call
// takes the first page only and is never retried.
package coursework

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"google.golang.org/api/classroom/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// StateDraft is the state a newly created submission starts in.
const StateDraft = "DRAFT"

// me is the Classroom alias for the authenticated user.
const me = "me"

// Client wraps a Classroom service bound to one authorized HTTP client.
type Client struct {
	svc    *classroom.Service
	hc     *http.Client
	logger *slog.Logger
}

// New creates a Client. httpClient must already carry the credential; opts
// are passed through to the SDK (endpoint, user agent).
func New(ctx context.Context, httpClient *http.Client, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	all := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	svc, err := classroom.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("coursework: creating classroom service: %w", err)
	}

	return &Client{svc: svc, hc: httpClient, logger: logger}, nil
}

// ListCourses returns the courses the user is enrolled in as a student.
func (c *Client) ListCourses(ctx context.Context) ([]*classroom.Course, error) {
	resp, err := c.svc.Courses.List().StudentId(me).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("coursework: listing courses: %w", err)
	}

	c.logger.Debug("listed courses", slog.Int("count", len(resp.Courses)))

	return resp.Courses, nil
}

// ListCourseWork returns the coursework items of a course.
func (c *Client) ListCourseWork(ctx context.Context, courseID string) ([]*classroom.CourseWork, error) {
	resp, err := c.svc.Courses.CourseWork.List(courseID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("coursework: listing coursework for course %s: %w", courseID, err)
	}

	c.logger.Debug("listed coursework",
		slog.String("course_id", courseID),
		slog.Int("count", len(resp.CourseWork)),
	)

	return resp.CourseWork, nil
}

// ListMySubmissions returns the user's submissions for one coursework item.
func (c *Client) ListMySubmissions(ctx context.Context, courseID, courseWorkID string) ([]*classroom.StudentSubmission, error) {
	resp, err := c.svc.Courses.CourseWork.StudentSubmissions.List(courseID, courseWorkID).
		UserId(me).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("coursework: listing submissions for %s/%s: %w", courseID, courseWorkID, err)
	}

	return resp.StudentSubmissions, nil
}

// CreateSubmission creates a submission in the DRAFT state. Classroom v1
// publishes no create method for student submissions, so the SDK has none and
// the live API answers this POST with 404, returned as a googleapi.Error.
// Classroom normally creates the submission when work is assigned, so
// callers only get here when the listing came back empty.
func (c *Client) CreateSubmission(ctx context.Context, courseID, courseWorkID string) (*classroom.StudentSubmission, error) {
	body, err := json.Marshal(&classroom.StudentSubmission{State: StateDraft})
	if err != nil {
		return nil, fmt.Errorf("coursework: encoding submission: %w", err)
	}

	u := c.svc.BasePath + "v1/courses/" + url.PathEscape(courseID) +
		"/courseWork/" + url.PathEscape(courseWorkID) + "/studentSubmissions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("coursework: building create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.svc.UserAgent != "" {
		req.Header.Set("User-Agent", c.svc.UserAgent)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coursework: creating submission for %s/%s: %w", courseID, courseWorkID, err)
	}
	defer googleapi.CloseBody(resp)

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("coursework: creating submission for %s/%s: %w", courseID, courseWorkID, err)
	}

	var sub classroom.StudentSubmission
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("coursework: decoding created submission: %w", err)
	}

	c.logger.Info("created draft submission",
		slog.String("course_id", courseID),
		slog.String("coursework_id", courseWorkID),
		slog.String("submission_id", sub.Id),
	)

	return &sub, nil
}

// AddAttachment adds one Drive file to a submission's attachments. Existing
// attachments are kept.
func (c *Client) AddAttachment(ctx context.Context, courseID, courseWorkID, submissionID, fileID, title string) error {
	req := &classroom.ModifyAttachmentsRequest{
		AddAttachments: []*classroom.Attachment{
			{DriveFile: &classroom.DriveFile{Id: fileID, Title: title}},
		},
	}

	_, err := c.svc.Courses.CourseWork.StudentSubmissions.
		ModifyAttachments(courseID, courseWorkID, submissionID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("coursework: attaching file %s to submission %s: %w", fileID, submissionID, err)
	}

	c.logger.Info("attached file to submission",
		slog.String("submission_id", submissionID),
		slog.String("file_id", fileID),
	)

	return nil
}

// TurnIn turns in a submission.
func (c *Client) TurnIn(ctx context.Context, courseID, courseWorkID, submissionID string) error {
	_, err := c.svc.Courses.CourseWork.StudentSubmissions.
		TurnIn(courseID, courseWorkID, submissionID, &classroom.TurnInStudentSubmissionRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("coursework: turning in submission %s: %w", submissionID, err)
	}

	c.logger.Info("turned in submission", slog.String("submission_id", submissionID))

	return nil
}
