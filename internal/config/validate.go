package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"
)

// Validation range constants.
const (
	minStatusWorkers   = 1
	maxStatusWorkers   = 16
	chunkAlignBytes    = 262144     // Drive resumable uploads use 256 KiB granularity
	minChunkBytes      = 262144     // 256 KiB
	maxChunkBytes      = 67_108_864 // 64 MiB
	minUploadBytes     = 1_048_576  // 1 MiB
	minConsentTimeout  = 30 * time.Second
	minConnectTimeout  = 1 * time.Second
	minDataTimeout     = 5 * time.Second
	maxPortNumber      = 65535
	minPortNumber      = 1
	loopbackCallbackIP = "127.0.0.1"
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.ServerConfig)...)
	errs = append(errs, validateAuth(&cfg.AuthConfig)...)
	errs = append(errs, validateUpload(&cfg.UploadConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints on the final merged result, after
// env and CLI overrides have been applied.
func ValidateResolved(r *Resolved) error {
	var errs []error

	errs = append(errs, validateHostPort("listen_addr", r.ListenAddr)...)

	for field, p := range map[string]string{
		"token_path":          r.TokenPath,
		"client_secrets_path": r.ClientSecretsPath,
		"upload_dir":          r.UploadDir,
	} {
		if p == "" {
			errs = append(errs, fmt.Errorf("%s: could not determine a default location, set it explicitly", field))
		}
	}

	if r.Logging.LogFile != "" && !filepath.IsAbs(r.Logging.LogFile) {
		errs = append(errs, fmt.Errorf("log_file: must be absolute after expansion, got %q", r.Logging.LogFile))
	}

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	errs = append(errs, validateHostPort("listen_addr", s.ListenAddr)...)

	if s.StatusWorkers < minStatusWorkers || s.StatusWorkers > maxStatusWorkers {
		errs = append(errs, fmt.Errorf("status_workers: must be between %d and %d, got %d",
			minStatusWorkers, maxStatusWorkers, s.StatusWorkers))
	}

	return errs
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	errs = append(errs, validateHostPort("callback_addr", a.CallbackAddr)...)

	if host, _, err := net.SplitHostPort(a.CallbackAddr); err == nil &&
		host != "localhost" && host != loopbackCallbackIP {
		errs = append(errs, fmt.Errorf("callback_addr: host must be localhost or %s, got %q",
			loopbackCallbackIP, host))
	}

	errs = append(errs, validateDurationMin("consent_timeout", a.ConsentTimeout, minConsentTimeout)...)

	return errs
}

func validateUpload(u *UploadConfig) []error {
	var errs []error

	maxBytes, err := ParseSize(u.MaxUploadSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("max_upload_size: %w", err))
	} else if maxBytes < minUploadBytes {
		errs = append(errs, fmt.Errorf("max_upload_size: must be at least 1MiB, got %s", u.MaxUploadSize))
	}

	errs = append(errs, validateChunkSize(u.UploadChunkSize)...)

	return errs
}

func validateChunkSize(s string) []error {
	bytes, err := ParseSize(s)
	if err != nil {
		return []error{fmt.Errorf("upload_chunk_size: %w", err)}
	}

	if bytes < minChunkBytes || bytes > maxChunkBytes {
		return []error{fmt.Errorf("upload_chunk_size: must be between 256KiB and 64MiB, got %s", s)}
	}

	if bytes%chunkAlignBytes != 0 {
		return []error{fmt.Errorf(
			"upload_chunk_size: must be a multiple of 256 KiB (%d bytes), got %s (%d bytes)",
			chunkAlignBytes, s, bytes)}
	}

	return nil
}

// validateHostPort checks a "host:port" listen or callback address.
func validateHostPort(field, addr string) []error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid address %q: %w", field, addr, err)}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < minPortNumber || port > maxPortNumber {
		return []error{fmt.Errorf("%s: invalid port %q", field, portStr)}
	}

	return nil
}

func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("data_timeout", n.DataTimeout, minDataTimeout)...)

	if n.UserAgent == "" {
		errs = append(errs, errors.New("user_agent: must not be empty"))
	}

	return errs
}
