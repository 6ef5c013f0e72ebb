package config

// Default values for configuration options. These are "layer 0" of the
// override chain. The callback address matches the redirect URI most
// operators register for an installed-app client (http://localhost:8080/).
const (
	defaultListenAddr      = "127.0.0.1:5000"
	defaultStatusWorkers   = 4
	defaultCallbackAddr    = "localhost:8080"
	defaultConsentTimeout  = "5m"
	defaultMaxUploadSize   = "32MiB"
	defaultUploadChunkSize = "8MiB"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultConnectTimeout  = "10s"
	defaultDataTimeout     = "60s"
	defaultUserAgent       = "classroom-go/0.1"
)

// DefaultConfig returns a Config populated with all default values.
// Path fields stay empty: Resolve fills them from the platform directories
// so that a config file can be shared between machines.
func DefaultConfig() *Config {
	return &Config{
		ServerConfig:  defaultServerConfig(),
		AuthConfig:    defaultAuthConfig(),
		UploadConfig:  defaultUploadConfig(),
		LoggingConfig: defaultLoggingConfig(),
		NetworkConfig: defaultNetworkConfig(),
	}
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:    defaultListenAddr,
		StatusWorkers: defaultStatusWorkers,
		Ledger:        true,
	}
}

func defaultAuthConfig() AuthConfig {
	return AuthConfig{
		CallbackAddr:   defaultCallbackAddr,
		ConsentTimeout: defaultConsentTimeout,
	}
}

func defaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxUploadSize:   defaultMaxUploadSize,
		UploadChunkSize: defaultUploadChunkSize,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ConnectTimeout: defaultConnectTimeout,
		DataTimeout:    defaultDataTimeout,
		UserAgent:      defaultUserAgent,
	}
}
