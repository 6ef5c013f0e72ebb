// Package server is the HTTP surface: a chi router that maps each request to
// one workflow call and renders the result as JSON. Handlers hold no
// credential state; every request re-enters the authenticator, which reads
// the credential file from disk.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/classroom-go/internal/ledger"
	"github.com/tonimelisma/classroom-go/internal/submission"
	"github.com/tonimelisma/classroom-go/internal/tokenfile"
)

// DefaultMaxUploadSize caps multipart bodies when Deps leaves it unset.
const DefaultMaxUploadSize = 32 << 20

// shutdownTimeout bounds the drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// readHeaderTimeout guards against slow-header clients.
const readHeaderTimeout = 10 * time.Second

// Authenticator is the credential lifecycle as seen by the handlers.
type Authenticator interface {
	Client(ctx context.Context) (*http.Client, error)
	ForceConsent(ctx context.Context) (*tokenfile.Credential, error)
	CallbackRedirectURI() string
	ClientSecretsPath() string
}

// Workflow runs the user-facing operations against bound API clients.
type Workflow interface {
	Courses(ctx context.Context) ([]submission.Course, error)
	Assignments(ctx context.Context, courseID string) ([]submission.Assignment, error)
	Submit(ctx context.Context, req submission.SubmitRequest) (*submission.SubmitResult, error)
}

// WorkflowFactory binds a Workflow to an authorized HTTP client. It is
// called once per request.
type WorkflowFactory func(ctx context.Context, hc *http.Client) (Workflow, error)

// History lists recorded submit attempts.
type History interface {
	Recent(ctx context.Context, limit int) ([]ledger.Entry, error)
}

// Deps is everything the server needs, assembled at startup.
type Deps struct {
	Auth        Authenticator
	NewWorkflow WorkflowFactory
	History     History // nil disables /submissions

	UploadDir     string
	MaxUploadSize int64
}

// Server serves the HTTP API.
type Server struct {
	deps   Deps
	router chi.Router
	logger *slog.Logger
}

// New creates a Server and registers its routes.
func New(deps Deps, logger *slog.Logger) *Server {
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = DefaultMaxUploadSize
	}

	s := &Server{deps: deps, logger: logger}
	s.router = s.routes()

	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(logRequests(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/auth", s.handleAuth)
	r.Get("/courses", s.handleCourses)
	r.Get("/assignments/{course_id}", s.handleAssignments)
	r.Post("/submit", s.handleSubmit)
	r.Get("/check_redirect_uri", s.handleCheckRedirectURI)
	r.Get("/submissions", s.handleSubmissions)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve accepts connections on ln until ctx is canceled, then drains
// in-flight requests. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: serving: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		s.logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutting down: %w", err)
		}

		return nil
	})

	return g.Wait()
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// workflow authenticates and binds a Workflow for this request.
func (s *Server) workflow(ctx context.Context) (Workflow, error) {
	hc, err := s.deps.Auth.Client(ctx)
	if err != nil {
		return nil, err
	}

	return s.deps.NewWorkflow(ctx, hc)
}
