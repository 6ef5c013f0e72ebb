package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"google.golang.org/api/option"

	"github.com/tonimelisma/classroom-go/internal/auth"
	"github.com/tonimelisma/classroom-go/internal/config"
	"github.com/tonimelisma/classroom-go/internal/ledger"
	"github.com/tonimelisma/classroom-go/internal/server"
	"github.com/tonimelisma/classroom-go/internal/submission"
)

// keepAlive is the TCP keep-alive period for API connections.
const keepAlive = 30 * time.Second

// newHTTPClient returns the base client for token and API calls. There is
// no overall timeout because uploads can legitimately take minutes; the
// connect and response-header phases are bounded instead.
func newHTTPClient(cfg *config.Resolved) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: keepAlive}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport.ResponseHeaderTimeout = cfg.DataTimeout

	return &http.Client{Transport: transport}
}

func newAuthenticator(cfg *config.Resolved, logger *slog.Logger) *auth.Authenticator {
	return auth.New(auth.Options{
		TokenPath:         cfg.TokenPath,
		ClientSecretsPath: cfg.ClientSecretsPath,
		CallbackAddr:      cfg.CallbackAddr,
		ConsentTimeout:    cfg.ConsentTimeout,
		HTTPClient:        newHTTPClient(cfg),
		OpenURL:           openBrowser,
	}, logger)
}

// openLedger opens the submission ledger, or returns nil when it is
// disabled.
func openLedger(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) (*ledger.Ledger, error) {
	if cfg.LedgerPath == "" {
		logger.Debug("submission ledger disabled")

		return nil, nil //nolint:nilnil // nil ledger means disabled
	}

	return ledger.Open(ctx, cfg.LedgerPath, logger)
}

func googleOptions(cfg *config.Resolved, rec submission.Recorder) server.GoogleOptions {
	return server.GoogleOptions{
		ChunkSize:     cfg.UploadChunkSize,
		StatusWorkers: cfg.StatusWorkers,
		Recorder:      rec,
		ClientOptions: []option.ClientOption{option.WithUserAgent(cfg.UserAgent)},
	}
}

// newWorkflow authenticates and binds the workflow for a one-shot command.
func newWorkflow(ctx context.Context, cfg *config.Resolved, rec submission.Recorder, logger *slog.Logger) (server.Workflow, error) {
	hc, err := newAuthenticator(cfg, logger).Client(ctx)
	if err != nil {
		return nil, err
	}

	return server.GoogleWorkflow(googleOptions(cfg, rec), logger)(ctx, hc)
}

// openBrowser launches the platform URL handler. Failure is not fatal: the
// consent flow prints the URL instead.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}
