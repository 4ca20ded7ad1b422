package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Align holds deterministic matcher settings.
type Align struct {
	NearWindowSec int `toml:"near_window_sec"`
	MaxMissing    int `toml:"max_missing"`
}

// LLM holds fallback resolver settings. The API key is never stored in the
// file; it comes from the environment.
type LLM struct {
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

type Config struct {
	Align Align `toml:"align"`
	LLM   LLM   `toml:"llm"`
}

func Default() Config {
	return Config{
		Align: Align{
			NearWindowSec: 12,
			MaxMissing:    20,
		},
		LLM: LLM{
			Model:          "gpt-5-mini",
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
	}
}

// Load reads a TOML config over the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config TOML %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Align.NearWindowSec <= 0 {
		return fmt.Errorf("align.near_window_sec must be positive, got %d", c.Align.NearWindowSec)
	}
	if c.Align.MaxMissing <= 0 {
		return fmt.Errorf("align.max_missing must be positive, got %d", c.Align.MaxMissing)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive, got %d", c.LLM.TimeoutSeconds)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	return nil
}
