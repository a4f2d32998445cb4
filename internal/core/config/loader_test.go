package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	// Setup env var
	os.Setenv("TEST_REDIS_URL", "redis://localhost:6380/2")
	defer os.Unsetenv("TEST_REDIS_URL")

	// Create temp config file
	configContent := `
endpoints:
  - https://api.hive.blog
redis:
  url: ${TEST_REDIS_URL}
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	// Load config
	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Redis.URL != "redis://localhost:6380/2" {
		t.Errorf("Expected URL redis://localhost:6380/2, got %s", cfg.Redis.URL)
	}
	if len(cfg.Endpoints) != 1 {
		t.Errorf("Expected 1 endpoint, got %d", len(cfg.Endpoints))
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  grpc_port: 9090\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(cfg.Endpoints) == 0 {
		t.Error("Expected default endpoints")
	}
	if cfg.Health.Interval != 30*time.Second || cfg.Health.Timeout != 5*time.Second {
		t.Errorf("Unexpected health defaults %+v", cfg.Health)
	}
	if cfg.Health.MaxConsecutiveFailures != 3 || cfg.Health.Selection != "sticky" {
		t.Errorf("Unexpected health defaults %+v", cfg.Health)
	}
	if cfg.Server.Port != 8080 || cfg.Server.GRPCPort != 9090 {
		t.Errorf("Unexpected server config %+v", cfg.Server)
	}
	if cfg.Mana.RefreshInterval != time.Minute || cfg.Feed.PageLimit != 20 {
		t.Errorf("Unexpected mana/feed defaults %+v %+v", cfg.Mana, cfg.Feed)
	}
}

func TestParse_Durations(t *testing.T) {
	cfg, err := Parse([]byte(`
health:
  interval: 1m
  timeout: 2s
  reconnect_interval: 500ms
  selection: latency
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	policy, err := cfg.Health.Policy()
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}
	if policy.Interval != time.Minute || policy.Timeout != 2*time.Second || policy.ReconnectInterval != 500*time.Millisecond {
		t.Errorf("Unexpected policy %+v", policy)
	}
	if policy.Selection != "latency" {
		t.Errorf("Expected latency selection, got %s", policy.Selection)
	}
}

func TestParse_InvalidSelection(t *testing.T) {
	if _, err := Parse([]byte("health:\n  selection: random\n")); err == nil {
		t.Error("Expected error for unknown selection")
	}
}
