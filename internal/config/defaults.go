package config

const (
	defaultConfigPath              = "~/.config/splintarr/config.toml"
	defaultDataDir                 = "~/.local/share/splintarr"
	defaultLogDir                  = "~/.local/share/splintarr/logs"
	defaultCheckDelayMinutes       = 15
	defaultRequestTimeoutSeconds   = 30
	defaultMaxRetries              = 3
	defaultRateLimit               = 5
	defaultReconcileTimeoutSeconds = 600
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogMaxSizeMB            = 10
	defaultLogMaxBackups           = 5
	defaultLogMaxAgeDays           = 30
	defaultDedupWindowSeconds      = 30
	defaultDedupThreshold          = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Feedback: Feedback{
			CheckDelayMinutes:       defaultCheckDelayMinutes,
			RequestTimeoutSeconds:   defaultRequestTimeoutSeconds,
			MaxRetries:              defaultMaxRetries,
			DefaultRateLimit:        defaultRateLimit,
			ReconcileTimeoutSeconds: defaultReconcileTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Grabs:          true,
		},
		Logging: Logging{
			Format:             defaultLogFormat,
			Level:              defaultLogLevel,
			MaxSizeMB:          defaultLogMaxSizeMB,
			MaxBackups:         defaultLogMaxBackups,
			MaxAgeDays:         defaultLogMaxAgeDays,
			DedupWindowSeconds: defaultDedupWindowSeconds,
			DedupThreshold:     defaultDedupThreshold,
		},
	}
}
