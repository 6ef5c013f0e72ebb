package server

import (
	"context"
	"log/slog"
	"net/http"

	"google.golang.org/api/option"

	"github.com/tonimelisma/classroom-go/internal/coursework"
	"github.com/tonimelisma/classroom-go/internal/filestore"
	"github.com/tonimelisma/classroom-go/internal/submission"
)

// GoogleOptions configures the Classroom and Drive clients behind
// GoogleWorkflow.
type GoogleOptions struct {
	ChunkSize     int64
	StatusWorkers int
	Recorder      submission.Recorder // nil disables the ledger

	// ClientOptions are passed to both SDKs (user agent, test endpoints).
	ClientOptions []option.ClientOption
}

// GoogleWorkflow returns a factory binding the submission workflow to fresh
// Classroom and Drive clients for each authorized HTTP client.
func GoogleWorkflow(opts GoogleOptions, logger *slog.Logger) WorkflowFactory {
	return func(ctx context.Context, hc *http.Client) (Workflow, error) {
		cw, err := coursework.New(ctx, hc, logger, opts.ClientOptions...)
		if err != nil {
			return nil, err
		}

		files, err := filestore.New(ctx, hc, logger, opts.ChunkSize, opts.ClientOptions...)
		if err != nil {
			return nil, err
		}

		return submission.New(cw, files, submission.Options{
			StatusWorkers: opts.StatusWorkers,
			Recorder:      opts.Recorder,
		}, logger), nil
	}
}
