package config

const (
	defaultConfigPath              = "~/.config/convoy/config.toml"
	defaultOutputDir               = "~/Videos/convoy"
	defaultLogDir                  = "~/.local/share/convoy/logs"
	defaultStagingDir              = "~/.local/share/convoy/staging"
	defaultMaxJobs                 = 4
	defaultBackend                 = BackendFFmpeg
	defaultFFmpegBinary            = "ffmpeg"
	defaultStderrTailLines         = 20
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultProgressBucket          = 5
	defaultProgressIntervalSeconds = 30
	defaultNotifyRequestTimeout    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Concurrency: Concurrency{
			MaxJobs: defaultMaxJobs,
		},
		Engine: Engine{
			Backend:              defaultBackend,
			FFmpegBinary:         defaultFFmpegBinary,
			HardwareAcceleration: true,
			StagingDir:           defaultStagingDir,
			StderrTailLines:      defaultStderrTailLines,
		},
		Logging: Logging{
			Format:                  defaultLogFormat,
			Level:                   defaultLogLevel,
			ProgressBucket:          defaultProgressBucket,
			ProgressIntervalSeconds: defaultProgressIntervalSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobFailed:      true,
			BatchSettled:   true,
		},
	}
}
