package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "CLASSROOM_GO_CONFIG"
	EnvListen    = "CLASSROOM_GO_LISTEN"
	EnvTokenPath = "CLASSROOM_GO_TOKEN_PATH"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // CLASSROOM_GO_CONFIG: override config file path
	ListenAddr string // CLASSROOM_GO_LISTEN: HTTP listen address
	TokenPath  string // CLASSROOM_GO_TOKEN_PATH: credential file location
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ListenAddr: os.Getenv(EnvListen),
		TokenPath:  os.Getenv(EnvTokenPath),
	}
}
