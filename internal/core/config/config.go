package config

import (
	"time"

	"github.com/vietddude/hivekit/internal/core/connection"
	redisclient "github.com/vietddude/hivekit/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Endpoints []string           `yaml:"endpoints"`
	Health    HealthConfig       `yaml:"health"`
	Server    ServerConfig       `yaml:"server"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Mana      ManaConfig         `yaml:"mana"`
	Feed      FeedConfig         `yaml:"feed"`
}

// HealthConfig holds the endpoint sweep policy.
type HealthConfig struct {
	Interval               time.Duration `yaml:"interval"`
	Timeout                time.Duration `yaml:"timeout"`
	ReconnectInterval      time.Duration `yaml:"reconnect_interval"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	Selection              string        `yaml:"selection"` // sticky, priority, latency, round_robin
}

// Policy converts the health settings to a connection policy.
func (h HealthConfig) Policy() (connection.Policy, error) {
	strategy, err := connection.ParseSelectionStrategy(h.Selection)
	if err != nil {
		return connection.Policy{}, err
	}
	return connection.Policy{
		Interval:               h.Interval,
		Timeout:                h.Timeout,
		ReconnectInterval:      h.ReconnectInterval,
		MaxConsecutiveFailures: h.MaxConsecutiveFailures,
		Selection:              strategy,
	}, nil
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 disables the gRPC health service
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ManaConfig holds settings for mana polling.
type ManaConfig struct {
	Accounts        []string      `yaml:"accounts"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// FeedConfig holds defaults for ranked feed queries.
type FeedConfig struct {
	PageLimit int `yaml:"page_limit"`
}
