package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (VANI_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: VANI_FAST_MODEL -> fast_model,
	// VANI_SERVER.PORT -> server.port, etc.
	if err := k.Load(env.Provider("VANI_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "VANI_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.FastModel == "" {
		return fmt.Errorf("fast_model is required")
	}
	if c.DeepModel == "" {
		return fmt.Errorf("deep_model is required")
	}
	if c.Quota.FastDailyLimit <= 0 {
		return fmt.Errorf("quota.fast_daily_limit must be positive, got %d", c.Quota.FastDailyLimit)
	}
	if c.Quota.DeepDailyLimit <= 0 {
		return fmt.Errorf("quota.deep_daily_limit must be positive, got %d", c.Quota.DeepDailyLimit)
	}
	for name, v := range map[string]float64{
		"language.confidence_threshold": c.Language.ConfidenceThreshold,
		"language.script_threshold":     c.Language.ScriptThreshold,
		"language.ascii_threshold":      c.Language.ASCIIThreshold,
		"language.ascii_discount":       c.Language.ASCIIDiscount,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, v)
		}
	}
	if c.Chat.HistoryWindow < 0 {
		return fmt.Errorf("chat.history_window must not be negative")
	}
	if c.Chat.RetrieveTopK <= 0 {
		return fmt.Errorf("chat.retrieve_top_k must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// Ceilings returns the per-model daily quota ceilings.
func (c *Config) Ceilings() map[string]int {
	return map[string]int{
		c.FastModel: c.Quota.FastDailyLimit,
		c.DeepModel: c.Quota.DeepDailyLimit,
	}
}
