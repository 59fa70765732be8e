package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	if err := c.validateRecognition(); err != nil {
		return err
	}
	if err := c.validateSegmentation(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRetrieval() error {
	return ensurePositiveMap(map[string]int{
		"retrieval.metadata_timeout": c.Retrieval.MetadataTimeout,
		"retrieval.download_timeout": c.Retrieval.DownloadTimeout,
	})
}

func (c *Config) validateRecognition() error {
	switch c.Recognition.Backend {
	case BackendWhisperX:
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigRelativePath
			}
			return fmt.Errorf("openai.api_key is required when recognition.backend is %q. Set OPENAI_API_KEY env var or edit %s", BackendOpenAI, defaultPath)
		}
		if c.OpenAI.TimeoutSeconds <= 0 {
			return errors.New("openai.timeout_seconds must be positive")
		}
	default:
		return fmt.Errorf("recognition.backend: unsupported value %q (want %s or %s)", c.Recognition.Backend, BackendWhisperX, BackendOpenAI)
	}
	switch c.Recognition.Device {
	case "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("recognition.device: unsupported value %q (want auto, cpu, or cuda)", c.Recognition.Device)
	}
	switch c.Recognition.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("recognition.vad_method: unsupported value %q (want silero or pyannote)", c.Recognition.VADMethod)
	}
	if c.Recognition.Backend == BackendWhisperX && c.Recognition.VADMethod == "pyannote" && c.Recognition.HFToken == "" {
		return errors.New("recognition.hf_token is required when recognition.vad_method is \"pyannote\". Set HF_TOKEN env var or use vad_method = \"silero\"")
	}
	if c.Recognition.MaxResidentModels < 1 {
		return errors.New("recognition.max_resident_models must be at least 1")
	}
	return nil
}

func (c *Config) validateSegmentation() error {
	s := c.Segmentation
	if s.MinWindowSeconds <= 0 {
		return errors.New("segmentation.min_window_seconds must be positive")
	}
	if s.MaxWindowSeconds < s.MinWindowSeconds {
		return errors.New("segmentation.max_window_seconds must be >= segmentation.min_window_seconds")
	}
	if s.DefaultWindowSeconds < s.MinWindowSeconds || s.DefaultWindowSeconds > s.MaxWindowSeconds {
		return fmt.Errorf("segmentation.default_window_seconds must be between %g and %g", s.MinWindowSeconds, s.MaxWindowSeconds)
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if c.Cleanup.DelaySeconds < 0 {
		return errors.New("cleanup.delay_seconds must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"cleanup.workers":           c.Cleanup.Workers,
		"cleanup.stale_after_hours": c.Cleanup.StaleAfterHours,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
