package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Resolved is the effective configuration after the override chain has been
// applied: paths are absolute, sizes are bytes, durations are parsed. It is
// the explicit configuration object handed to the server and CLI at startup.
type Resolved struct {
	ConfigPath string `json:"config_path"`

	ListenAddr    string `json:"listen_addr"`
	StatusWorkers int    `json:"status_workers"`
	LedgerPath    string `json:"ledger_path"` // empty when the ledger is disabled
	PIDPath       string `json:"pid_path"`

	CallbackAddr      string        `json:"callback_addr"`
	TokenPath         string        `json:"token_path"`
	ClientSecretsPath string        `json:"client_secrets_path"`
	ConsentTimeout    time.Duration `json:"consent_timeout"`

	UploadDir       string `json:"upload_dir"`
	MaxUploadSize   int64  `json:"max_upload_size"`
	UploadChunkSize int64  `json:"upload_chunk_size"`

	Logging LoggingConfig `json:"logging"`

	ConnectTimeout time.Duration `json:"connect_timeout"`
	DataTimeout    time.Duration `json:"data_timeout"`
	UserAgent      string        `json:"user_agent"`
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string, logger *slog.Logger) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config loaded", slog.String("path", path))

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("no config file, using defaults", slog.String("path", path))

		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath, logger)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	if env.ListenAddr != "" {
		cfg.ListenAddr = env.ListenAddr
	}

	if env.TokenPath != "" {
		cfg.TokenPath = env.TokenPath
	}

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	if cli.ListenAddr != nil {
		cfg.ListenAddr = *cli.ListenAddr
	}

	resolved, err := buildResolved(cfg, cfgPath)
	if err != nil {
		return nil, err
	}

	// 5. Validate the final resolved configuration
	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}

// buildResolved converts validated raw values into their typed form and
// fills empty paths from the platform directories.
func buildResolved(cfg *Config, cfgPath string) (*Resolved, error) {
	r := &Resolved{
		ConfigPath:        cfgPath,
		ListenAddr:        cfg.ListenAddr,
		StatusWorkers:     cfg.StatusWorkers,
		PIDPath:           DefaultPIDPath(),
		CallbackAddr:      cfg.CallbackAddr,
		TokenPath:         pathOrDefault(cfg.TokenPath, DefaultTokenPath),
		ClientSecretsPath: pathOrDefault(cfg.ClientSecretsPath, DefaultClientSecretsPath),
		UploadDir:         pathOrDefault(cfg.UploadDir, DefaultUploadDir),
		Logging:           cfg.LoggingConfig,
		UserAgent:         cfg.UserAgent,
	}

	if cfg.Ledger {
		r.LedgerPath = DefaultLedgerPath()
	}

	r.Logging.LogFile = expandTilde(r.Logging.LogFile)

	var errs []error

	var err error
	if r.MaxUploadSize, err = ParseSize(cfg.MaxUploadSize); err != nil {
		errs = append(errs, fmt.Errorf("max_upload_size: %w", err))
	}

	if r.UploadChunkSize, err = ParseSize(cfg.UploadChunkSize); err != nil {
		errs = append(errs, fmt.Errorf("upload_chunk_size: %w", err))
	}

	if r.ConsentTimeout, err = time.ParseDuration(cfg.ConsentTimeout); err != nil {
		errs = append(errs, fmt.Errorf("consent_timeout: %w", err))
	}

	if r.ConnectTimeout, err = time.ParseDuration(cfg.ConnectTimeout); err != nil {
		errs = append(errs, fmt.Errorf("connect_timeout: %w", err))
	}

	if r.DataTimeout, err = time.ParseDuration(cfg.DataTimeout); err != nil {
		errs = append(errs, fmt.Errorf("data_timeout: %w", err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return r, nil
}

// pathOrDefault expands a configured path, or falls back to the platform
// default when unset.
func pathOrDefault(configured string, fallback func() string) string {
	if configured == "" {
		return fallback()
	}

	return expandTilde(configured)
}
