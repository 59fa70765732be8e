package config

const (
	defaultStorageDir         = "~/.local/share/tubescribe/audio"
	defaultStateDir           = "~/.local/share/tubescribe"
	defaultLogDir             = "~/.local/share/tubescribe/logs"
	defaultModelCacheDir      = "~/.cache/tubescribe/models"
	defaultAPIBind            = "127.0.0.1:8000"
	defaultYtDlpBinary        = "yt-dlp"
	defaultAudioFormat        = "bestaudio[ext=m4a]/bestaudio[ext=mp4]/bestaudio[ext=webm]/bestaudio/best[height<=720]/best"
	defaultMetadataTimeout    = 60
	defaultDownloadTimeout    = 900
	defaultMinFreeMB          = 512
	defaultBackend            = BackendWhisperX
	defaultModel              = "small"
	defaultDevice             = "auto"
	defaultMaxResidentModels  = 2
	defaultVADMethod          = "silero"
	defaultOpenAIBaseURL      = "https://api.openai.com/v1"
	defaultOpenAIModel        = "whisper-1"
	defaultOpenAITimeout      = 300
	defaultWindowSeconds      = 8.0
	defaultMinWindowSeconds   = 1.0
	defaultMaxWindowSeconds   = 60.0
	defaultCleanupDelay       = 2
	defaultCleanupWorkers     = 1
	defaultStaleAfterHours    = 24
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultConfigRelativePath = "~/.config/tubescribe/config.toml"
)

// Recognition backends understood by the server.
const (
	BackendWhisperX = "whisperx"
	BackendOpenAI   = "openai"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Retrieval: Retrieval{
			YtDlpBinary:     defaultYtDlpBinary,
			Format:          defaultAudioFormat,
			MetadataTimeout: defaultMetadataTimeout,
			DownloadTimeout: defaultDownloadTimeout,
			MinFreeMB:       defaultMinFreeMB,
		},
		Recognition: Recognition{
			Backend:           defaultBackend,
			DefaultModel:      defaultModel,
			Device:            defaultDevice,
			MaxResidentModels: defaultMaxResidentModels,
			ModelCacheDir:     defaultModelCacheDir,
			VADMethod:         defaultVADMethod,
		},
		OpenAI: OpenAI{
			BaseURL:        defaultOpenAIBaseURL,
			Model:          defaultOpenAIModel,
			TimeoutSeconds: defaultOpenAITimeout,
		},
		Segmentation: Segmentation{
			DefaultWindowSeconds: defaultWindowSeconds,
			MinWindowSeconds:     defaultMinWindowSeconds,
			MaxWindowSeconds:     defaultMaxWindowSeconds,
		},
		Cleanup: Cleanup{
			DelaySeconds:    defaultCleanupDelay,
			Workers:         defaultCleanupWorkers,
			StaleAfterHours: defaultStaleAfterHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
