package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/classroom-go/internal/auth"
	"github.com/tonimelisma/classroom-go/internal/server"
	"github.com/tonimelisma/classroom-go/internal/submission"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server until interrupted.

Only one server may run per data directory; a second instance exits with an
error. The first SIGINT or SIGTERM drains in-flight requests, a second one
exits immediately.`,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "listen address, overrides listen_addr")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := resolvedCfg

	logger, closeLog, err := buildLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	releasePID, err := writePIDFile(cfg.PIDPath)
	if err != nil {
		return err
	}
	defer releasePID()

	ctx := shutdownContext(cmd.Context(), logger)

	lg, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}

	deps := server.Deps{
		UploadDir:     cfg.UploadDir,
		MaxUploadSize: cfg.MaxUploadSize,
	}

	var rec submission.Recorder

	if lg != nil {
		defer lg.Close()

		rec = lg
		deps.History = lg
	}

	authn := newAuthenticator(cfg, logger)
	deps.Auth = authn
	deps.NewWorkflow = server.GoogleWorkflow(googleOptions(cfg, rec), logger)

	if !auth.ClientSecretsPresent(cfg.ClientSecretsPath) {
		logger.Warn("client secrets file not found, sign-in will fail until it exists",
			slog.String("path", cfg.ClientSecretsPath),
		)
	}

	logger.Info("starting server",
		slog.String("listen_addr", cfg.ListenAddr),
		slog.String("callback_redirect_uri", authn.CallbackRedirectURI()),
		slog.String("upload_dir", cfg.UploadDir),
		slog.Bool("ledger", lg != nil),
	)

	statusf("Listening on http://%s (Ctrl-C to stop)\n", cfg.ListenAddr)

	if err := server.New(deps, logger).ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		return err
	}

	statusf("Server stopped.\n")

	return nil
}
