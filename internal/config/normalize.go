package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRetrieval()
	if err := c.normalizeRecognition(); err != nil {
		return err
	}
	c.normalizeOpenAI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		c.Paths.StorageDir = defaultStorageDir
	}
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("TUBESCRIBE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeRetrieval() {
	c.Retrieval.YtDlpBinary = strings.TrimSpace(c.Retrieval.YtDlpBinary)
	if c.Retrieval.YtDlpBinary == "" {
		c.Retrieval.YtDlpBinary = defaultYtDlpBinary
	}
	c.Retrieval.Format = strings.TrimSpace(c.Retrieval.Format)
	if c.Retrieval.Format == "" {
		c.Retrieval.Format = defaultAudioFormat
	}
}

func (c *Config) normalizeRecognition() error {
	c.Recognition.Backend = strings.ToLower(strings.TrimSpace(c.Recognition.Backend))
	if c.Recognition.Backend == "" {
		c.Recognition.Backend = defaultBackend
	}
	c.Recognition.DefaultModel = strings.ToLower(strings.TrimSpace(c.Recognition.DefaultModel))
	if c.Recognition.DefaultModel == "" {
		c.Recognition.DefaultModel = defaultModel
	}
	c.Recognition.Device = strings.ToLower(strings.TrimSpace(c.Recognition.Device))
	if c.Recognition.Device == "" {
		c.Recognition.Device = defaultDevice
	}
	c.Recognition.Language = strings.ToLower(strings.TrimSpace(c.Recognition.Language))
	c.Recognition.VADMethod = strings.ToLower(strings.TrimSpace(c.Recognition.VADMethod))
	if c.Recognition.VADMethod == "" {
		c.Recognition.VADMethod = defaultVADMethod
	}
	if strings.TrimSpace(c.Recognition.ModelCacheDir) == "" {
		c.Recognition.ModelCacheDir = defaultModelCacheDir
	}
	var err error
	if c.Recognition.ModelCacheDir, err = expandPath(c.Recognition.ModelCacheDir); err != nil {
		return fmt.Errorf("recognition.model_cache_dir: %w", err)
	}
	c.Recognition.HFToken = strings.TrimSpace(c.Recognition.HFToken)
	if c.Recognition.HFToken == "" {
		for _, key := range []string{"HF_TOKEN", "HUGGING_FACE_HUB_TOKEN"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.Recognition.HFToken = strings.TrimSpace(value)
				break
			}
		}
	}
	return nil
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.OpenAI.APIKey = strings.TrimSpace(value)
		}
	}
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	c.OpenAI.Model = strings.TrimSpace(c.OpenAI.Model)
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultOpenAIModel
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
