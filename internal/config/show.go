package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (%s)\n\n", r.ConfigPath)

	renderServerSection(ew, r)
	renderAuthSection(ew, r)
	renderUploadSection(ew, r)
	renderLoggingSection(ew, &r.Logging)
	renderNetworkSection(ew, r)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderServerSection(ew *errWriter, r *Resolved) {
	ew.printf("[server]\n")
	ew.printf("  listen_addr    = %q\n", r.ListenAddr)
	ew.printf("  status_workers = %d\n", r.StatusWorkers)

	if r.LedgerPath != "" {
		ew.printf("  ledger         = %q\n", r.LedgerPath)
	} else {
		ew.printf("  ledger         = disabled\n")
	}

	ew.printf("\n")
}

func renderAuthSection(ew *errWriter, r *Resolved) {
	ew.printf("[auth]\n")
	ew.printf("  callback_addr       = %q\n", r.CallbackAddr)
	ew.printf("  token_path          = %q\n", r.TokenPath)
	ew.printf("  client_secrets_path = %q\n", r.ClientSecretsPath)
	ew.printf("  consent_timeout     = %q\n", r.ConsentTimeout.String())
	ew.printf("\n")
}

func renderUploadSection(ew *errWriter, r *Resolved) {
	ew.printf("[upload]\n")
	ew.printf("  upload_dir        = %q\n", r.UploadDir)
	ew.printf("  max_upload_size   = %d\n", r.MaxUploadSize)
	ew.printf("  upload_chunk_size = %d\n", r.UploadChunkSize)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)

	if l.LogFile != "" {
		ew.printf("  log_file   = %q\n", l.LogFile)
	}

	ew.printf("  log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, r *Resolved) {
	ew.printf("[network]\n")
	ew.printf("  connect_timeout = %q\n", r.ConnectTimeout.String())
	ew.printf("  data_timeout    = %q\n", r.DataTimeout.String())
	ew.printf("  user_agent      = %q\n", r.UserAgent)
}
