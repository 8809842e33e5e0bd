package config

const (
	defaultConfigPath            = "~/.config/flux/config.toml"
	defaultBackendURL            = "http://127.0.0.1:8000"
	defaultTimeoutSeconds        = 600
	defaultHistoryTimeoutSeconds = 10
	defaultUserAgent             = "flux/dev"
	defaultFormat                = "mp4"
	defaultQuality               = "best"
	defaultStateDir              = "~/.local/share/flux"
	defaultLogDir                = "~/.local/share/flux/logs"
	defaultSnapshotName          = "history.db"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Backend: Backend{
			URL:                   defaultBackendURL,
			TimeoutSeconds:        defaultTimeoutSeconds,
			HistoryTimeoutSeconds: defaultHistoryTimeoutSeconds,
			UserAgent:             defaultUserAgent,
		},
		Defaults: Defaults{
			Format:        defaultFormat,
			Quality:       defaultQuality,
			SubtitleLangs: []string{"en"},
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
