// Package config loads and hot-reloads the kernel's YAML configuration,
// layering environment overrides on top of a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"cogkernel/internal/logging"
)

// Config holds the configuration keys named by the kernel's wire
// contract: persistence location, KB capacity, LLM connection settings,
// and the shared worker pool size.
type Config struct {
	PersistenceFilePath string  `yaml:"persistenceFilePath"`
	GlobalKbCapacity    int     `yaml:"globalKbCapacity"`
	LLMApiURL           string  `yaml:"llmApiUrl"`
	LLMModel            string  `yaml:"llmModel"`
	LLMTemperature      float64 `yaml:"llmTemperature"`
	LLMTimeoutSeconds   int     `yaml:"llmTimeoutSeconds"`
	Concurrency         int     `yaml:"concurrency"`

	// PollIntervalMS and WarmupMS govern the system control loop's tick
	// cadence (default: 500ms poll after a 100ms warmup).
	PollIntervalMS int `yaml:"pollIntervalMs"`
	WarmupMS       int `yaml:"warmupMs"`

	DebugLogging bool `yaml:"debugLogging"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		PersistenceFilePath: "data/cogkernel.db",
		GlobalKbCapacity:    0, // 0 disables capacity enforcement (see SPEC_FULL.md, C.4)
		LLMApiURL:           "",
		LLMModel:            "gemini-2.0-flash",
		LLMTemperature:      0.7,
		LLMTimeoutSeconds:   60,
		Concurrency:         8,
		PollIntervalMS:      500,
		WarmupMS:            100,
		DebugLogging:        false,
	}
}

// Load reads configuration from a YAML file, falling back to defaults
// when the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	log := logging.Get(logging.CategoryConfig)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Infow("config file not found, using defaults", "path", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	log.Infow("config loaded", "path", path, "llmModel", cfg.LLMModel)
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("COGKERNEL_LLM_URL"); url != "" {
		c.LLMApiURL = url
	}
	if model := os.Getenv("COGKERNEL_LLM_MODEL"); model != "" {
		c.LLMModel = model
	}
	if path := os.Getenv("COGKERNEL_DB_PATH"); path != "" {
		c.PersistenceFilePath = path
	}
	if v := os.Getenv("COGKERNEL_DEBUG"); v == "1" || v == "true" {
		c.DebugLogging = true
	}
}

// PollInterval returns PollIntervalMS as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Warmup returns WarmupMS as a time.Duration.
func (c *Config) Warmup() time.Duration {
	return time.Duration(c.WarmupMS) * time.Millisecond
}

// LLMTimeout returns LLMTimeoutSeconds as a time.Duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}
