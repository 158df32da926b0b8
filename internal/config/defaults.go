package config

const (
	defaultWorkDir               = "~/.local/share/reeler/work"
	defaultOutputDir             = "~/videos"
	defaultLogDir                = "~/.local/share/reeler/logs"
	defaultHistoryPath           = "~/.local/share/reeler/history.db"
	defaultDownloaderBinary      = "yt-dlp"
	defaultDownloaderParallelism = 4
	defaultDownloaderAttempts    = 3
	defaultRetryDelayMillis      = 2000
	defaultEncoderBinary         = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultEncoderParallelism    = 2
	defaultContainer             = "mkv"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Downloader: Downloader{
			Binary:            defaultDownloaderBinary,
			Parallelism:       defaultDownloaderParallelism,
			MaxAttempts:       defaultDownloaderAttempts,
			RetryDelayMillis:  defaultRetryDelayMillis,
			SubtitleLanguages: []string{"en"},
		},
		Encoder: Encoder{
			Binary:        defaultEncoderBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Parallelism:   defaultEncoderParallelism,
			Container:     defaultContainer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
	}
}
