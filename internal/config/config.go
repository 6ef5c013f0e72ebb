// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for classroom-go. Values follow a
// four-layer override chain (defaults -> config file -> environment -> CLI
// flags). All keys are flat top-level TOML keys; the Go structs group them by
// concern only.
package config

// Config is the top-level configuration structure parsed from a TOML file.
// Embedded sections are flattened by the TOML decoder.
type Config struct {
	ServerConfig
	AuthConfig
	UploadConfig
	LoggingConfig
	NetworkConfig
}

// ServerConfig controls the HTTP surface and per-request behavior.
type ServerConfig struct {
	ListenAddr    string `toml:"listen_addr"`
	StatusWorkers int    `toml:"status_workers"`
	Ledger        bool   `toml:"ledger"`
}

// AuthConfig locates the credential artifacts and shapes the consent flow.
// callback_addr must match a redirect URI registered for the OAuth client.
type AuthConfig struct {
	CallbackAddr      string `toml:"callback_addr"`
	TokenPath         string `toml:"token_path"`
	ClientSecretsPath string `toml:"client_secrets_path"`
	ConsentTimeout    string `toml:"consent_timeout"`
}

// UploadConfig controls the scratch directory and Drive upload chunking.
type UploadConfig struct {
	UploadDir       string `toml:"upload_dir"`
	MaxUploadSize   string `toml:"max_upload_size"`
	UploadChunkSize string `toml:"upload_chunk_size"`
}

// LoggingConfig controls log output behavior: level, destination and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls the HTTP client used for Google API calls.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	ListenAddr *string // serve --listen
}
