package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/classroom-go/internal/submission"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before parts spill to temporary files.
const multipartMemory = 8 << 20

// Scratch permissions: uploads may be private documents.
const (
	scratchDirPerms  = 0o700
	scratchFilePerms = 0o600
)

var errUploadTooLarge = errors.New("upload exceeds the maximum size")

// submitForm is a parsed /submit request.
type submitForm struct {
	courseID     string
	assignmentID string
	filename     string
	file         multipart.File
	multipart    *multipart.Form
}

func (f *submitForm) close() {
	if f.file != nil {
		f.file.Close()
	}

	if f.multipart != nil {
		_ = f.multipart.RemoveAll()
	}
}

// stagedUpload is the scratch copy of an uploaded file.
type stagedUpload struct {
	name string // sanitized base name
	path string
}

// readSubmitForm parses the multipart body and checks that course_id,
// assignment_id and file are all present.
func (s *Server) readSubmitForm(w http.ResponseWriter, r *http.Request) (*submitForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w (%d bytes)", errUploadTooLarge, tooLarge.Limit)
		}

		return nil, fmt.Errorf("%w: parsing multipart form: %w", submission.ErrBadRequest, err)
	}

	form := &submitForm{
		courseID:     strings.TrimSpace(r.FormValue("course_id")),
		assignmentID: strings.TrimSpace(r.FormValue("assignment_id")),
		multipart:    r.MultipartForm,
	}

	var missing []string

	if form.courseID == "" {
		missing = append(missing, "course_id")
	}

	if form.assignmentID == "" {
		missing = append(missing, "assignment_id")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		missing = append(missing, "file")
	} else {
		form.file = file
		form.filename = header.Filename
	}

	if len(missing) > 0 {
		form.close()

		return nil, fmt.Errorf("%w: missing %s", submission.ErrBadRequest, strings.Join(missing, ", "))
	}

	return form, nil
}

func (s *Server) writeSubmitFormError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errUploadTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
		return
	}

	s.writeError(w, r, err)
}

// stage copies the uploaded file to <upload_dir>/<uuid>/<name>. The returned
// cleanup removes the whole per-request directory and must always be called
// when err is nil.
func (s *Server) stage(form *submitForm) (*stagedUpload, func(), error) {
	name, err := sanitizeFilename(form.filename)
	if err != nil {
		return nil, nil, err
	}

	dir := filepath.Join(s.deps.UploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, scratchDirPerms); err != nil {
		return nil, nil, fmt.Errorf("server: creating scratch directory: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Error("removing scratch directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	}

	staged := &stagedUpload{name: name, path: filepath.Join(dir, name)}

	if err := copyToFile(staged.path, form.file); err != nil {
		cleanup()

		return nil, nil, err
	}

	s.logger.Debug("staged upload",
		slog.String("name", name),
		slog.String("path", staged.path),
	)

	return staged, cleanup, nil
}

func copyToFile(dst string, src io.Reader) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, scratchFilePerms)
	if err != nil {
		return fmt.Errorf("server: creating scratch file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()

		return fmt.Errorf("server: writing scratch file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("server: closing scratch file: %w", err)
	}

	return nil
}

// sanitizeFilename reduces a client-supplied name to its NFC-normalized base
// name. Names that reduce to nothing usable are rejected.
func sanitizeFilename(name string) (string, error) {
	// Browsers on Windows may send the full client path.
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	base = norm.NFC.String(strings.TrimSpace(base))

	switch {
	case base == "", base == ".", base == "..", base == "/":
		return "", fmt.Errorf("%w: invalid file name %q", submission.ErrBadRequest, name)
	case strings.ContainsRune(base, 0):
		return "", fmt.Errorf("%w: invalid file name %q", submission.ErrBadRequest, name)
	}

	return base, nil
}
