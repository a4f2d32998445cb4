package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/hivekit/internal/core/connection"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if _, err := cfg.Health.Policy(); err != nil {
		return nil, fmt.Errorf("invalid health config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (cfg *AppConfig) ApplyDefaults() {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = append([]string(nil), connection.DefaultEndpoints...)
	}

	def := connection.DefaultPolicy()
	if cfg.Health.Interval == 0 {
		cfg.Health.Interval = def.Interval
	}
	if cfg.Health.Timeout == 0 {
		cfg.Health.Timeout = def.Timeout
	}
	if cfg.Health.ReconnectInterval == 0 {
		cfg.Health.ReconnectInterval = def.ReconnectInterval
	}
	if cfg.Health.MaxConsecutiveFailures == 0 {
		cfg.Health.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if cfg.Health.Selection == "" {
		cfg.Health.Selection = string(def.Selection)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Mana.RefreshInterval == 0 {
		cfg.Mana.RefreshInterval = 60 * time.Second
	}
	if cfg.Feed.PageLimit == 0 {
		cfg.Feed.PageLimit = 20
	}
}
