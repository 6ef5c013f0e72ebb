package server

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tonimelisma/classroom-go/internal/auth"
	"github.com/tonimelisma/classroom-go/internal/ledger"
	"github.com/tonimelisma/classroom-go/internal/submission"
)

// appRedirectURI is the redirect URI the landing app advertised historically.
// It is reported as-is next to the one the consent flow really uses so that
// a mismatch with the registered URIs is visible.
const appRedirectURI = "http://localhost:5000/oauth2callback"

// History page size.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		CallbackRedirectURI string
		HistoryEnabled      bool
	}{
		CallbackRedirectURI: s.deps.Auth.CallbackRedirectURI(),
		HistoryEnabled:      s.deps.History != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("rendering index", slog.String("error", err.Error()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAuth discards the stored credential and runs the consent flow, then
// redirects to the course list.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if !auth.ClientSecretsPresent(s.deps.Auth.ClientSecretsPath()) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: auth.ErrClientSecretsMissing.Error()})
		return
	}

	if _, err := s.deps.Auth.ForceConsent(r.Context()); err != nil {
		s.logger.Error("authentication failed", slog.String("error", err.Error()))

		msg := "Authentication failed: " + err.Error()
		if errors.Is(err, auth.ErrClientSecretsMissing) {
			msg = err.Error()
		}

		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msg})

		return
	}

	s.logger.Info("credentials saved with refresh token")
	http.Redirect(w, r, "/courses", http.StatusFound)
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	courses, err := wf.Courses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Courses []submission.Course `json:"courses"`
	}{courses})
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "course_id")

	wf, err := s.workflow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	assignments, err := wf.Assignments(r.Context(), courseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Assignments []submission.Assignment `json:"assignments"`
	}{assignments})
}

// handleSubmit stages the uploaded file in a per-request scratch directory,
// runs the submit workflow and removes the scratch directory on every path.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	form, err := s.readSubmitForm(w, r)
	if err != nil {
		s.writeSubmitFormError(w, r, err)
		return
	}
	defer form.close()

	staged, cleanup, err := s.stage(form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanup()

	wf, err := s.workflow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := wf.Submit(r.Context(), submission.SubmitRequest{
		CourseID:     form.courseID,
		AssignmentID: form.assignmentID,
		FileName:     staged.name,
		Path:         staged.path,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Assignment %s submitted successfully.", res.AssignmentID),
	})
}

// handleCheckRedirectURI reports the redirect URIs registered in the client
// secrets file. Problems are reported in the body with status 200.
func (s *Server) handleCheckRedirectURI(w http.ResponseWriter, _ *http.Request) {
	path := s.deps.Auth.ClientSecretsPath()

	if !auth.ClientSecretsPresent(path) {
		writeJSON(w, http.StatusOK, errorBody{Error: auth.ErrClientSecretsMissing.Error()})
		return
	}

	uris, err := auth.ConfiguredRedirectURIs(path)
	if err != nil {
		writeJSON(w, http.StatusOK, errorBody{Error: "Error reading credentials file: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, struct {
		ConfiguredRedirectURIs []string `json:"configured_redirect_uris"`
		AppRedirectURI         string   `json:"app_redirect_uri"`
		CallbackRedirectURI    string   `json:"callback_redirect_uri"`
	}{
		ConfiguredRedirectURIs: uris,
		AppRedirectURI:         appRedirectURI,
		CallbackRedirectURI:    s.deps.Auth.CallbackRedirectURI(),
	})
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "submission ledger is disabled"})
		return
	}

	limit := defaultHistoryLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a positive integer", submission.ErrBadRequest))
			return
		}

		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Submissions []ledger.Entry `json:"submissions"`
	}{entries})
}
