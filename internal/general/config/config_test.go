package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
server:
  base_url: "http://dispatch.local:9090"

realtime:
  url: "ws://dispatch.local:9090/events"
  max_reconnect_attempts: 3
  reconnect_delay_ms: 500
  reconnect_delay_cap_ms: 2000

location:
  min_interval_seconds: 20   # slower cadence for tests
  min_displacement_meters: 50

credentials:
  token_file: "/tmp/driver.token"

dispatchd:
  port: 9090
  default_radius_km: 25
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Server.BaseURL != "http://dispatch.local:9090" {
		t.Errorf("base_url = %q", cfg.Server.BaseURL)
	}
	if cfg.Realtime.MaxReconnectAttempts != 3 {
		t.Errorf("max_reconnect_attempts = %d", cfg.Realtime.MaxReconnectAttempts)
	}
	if cfg.Realtime.ReconnectDelay != 500*time.Millisecond || cfg.Realtime.ReconnectDelayCap != 2*time.Second {
		t.Errorf("reconnect delays = %v / %v", cfg.Realtime.ReconnectDelay, cfg.Realtime.ReconnectDelayCap)
	}
	if cfg.Location.MinInterval != 20*time.Second || cfg.Location.MinDisplacement != 50 {
		t.Errorf("location gate = %v / %v", cfg.Location.MinInterval, cfg.Location.MinDisplacement)
	}
	if cfg.Credentials.TokenFile != "/tmp/driver.token" {
		t.Errorf("token_file = %q", cfg.Credentials.TokenFile)
	}
	if cfg.Dispatchd.Port != 9090 || cfg.Dispatchd.DefaultRadiusKm != 25 {
		t.Errorf("dispatchd = %+v", cfg.Dispatchd)
	}

	// sections absent from the file fall back to defaults
	if cfg.RabbitMQ.Port != 5672 || cfg.Database.Port != 5432 {
		t.Errorf("defaults not applied: rabbitmq=%d database=%d", cfg.RabbitMQ.Port, cfg.Database.Port)
	}
}

func TestMissingFileRunsOnDefaults(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Server.BaseURL != "http://localhost:8080" {
		t.Errorf("default base_url = %q", cfg.Server.BaseURL)
	}
	if cfg.Realtime.MaxReconnectAttempts != 5 {
		t.Errorf("default max_reconnect_attempts = %d", cfg.Realtime.MaxReconnectAttempts)
	}
	if cfg.Realtime.ReconnectDelay != time.Second || cfg.Realtime.ReconnectDelayCap != 5*time.Second {
		t.Errorf("default reconnect delays = %v / %v", cfg.Realtime.ReconnectDelay, cfg.Realtime.ReconnectDelayCap)
	}
	if cfg.Location.MinInterval != 15*time.Second || cfg.Location.MinDisplacement != 100 {
		t.Errorf("default location gate = %v / %v", cfg.Location.MinInterval, cfg.Location.MinDisplacement)
	}
}

func TestUnknownKeyIsRejected(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "server:\n  base_uri: \"http://x\"\n"))
	if err == nil || !strings.Contains(err.Error(), "base_uri") {
		t.Fatalf("err = %v, want unknown key complaint", err)
	}
}

func TestValidationCatchesBadRanges(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "realtime:\n  url: \"http://not-a-ws-url\"\n"))
	if err == nil || !strings.Contains(err.Error(), "realtime.url") {
		t.Fatalf("err = %v, want realtime.url complaint", err)
	}

	_, err = LoadFromFile(writeConfig(t, "dispatchd:\n  port: 70000\n"))
	if err == nil || !strings.Contains(err.Error(), "dispatchd.port") {
		t.Fatalf("err = %v, want dispatchd.port complaint", err)
	}
}
