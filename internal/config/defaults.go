package config

const (
	defaultDataDir             = "~/.local/share/fieldsync"
	defaultLogDir              = "~/.local/share/fieldsync/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultRemoteTimeout       = 30
	defaultProbeTimeout        = 5
	defaultProbeInterval       = 30
	defaultSyncInterval        = 300
	defaultFollowupDelayMillis = 500
	defaultMaxAttempts         = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Remote: Remote{
			RequestTimeout: defaultRemoteTimeout,
		},
		Connectivity: Connectivity{
			CheckInterval:  defaultProbeInterval,
			RequestTimeout: defaultProbeTimeout,
		},
		Sync: Sync{
			Interval:        defaultSyncInterval,
			FollowupDelayMS: defaultFollowupDelayMillis,
			MaxAttempts:     defaultMaxAttempts,
			Auto:            true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
