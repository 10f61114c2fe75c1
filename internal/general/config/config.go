package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds settings for both the driver agent and dispatchd.
// Sections not relevant to a given mode may be left empty; consumers
// decide what is required (e.g. dispatchd falls back to the in-memory
// store when database.host is unset).
type Config struct {
	Server struct {
		BaseURL string // REST API base, e.g. "http://localhost:8080"
	}
	Realtime struct {
		URL                  string // events namespace, e.g. "ws://localhost:8080/events"
		MaxReconnectAttempts int
		ReconnectDelay       time.Duration
		ReconnectDelayCap    time.Duration
	}
	Location struct {
		MinInterval     time.Duration
		MinDisplacement float64 // meters
	}
	Credentials struct {
		TokenFile string // falls back to DRYJETS_DRIVER_TOKEN env when empty
	}
	RabbitMQ struct {
		Host     string // push bridge disabled when empty
		Port     int
		User     string
		Password string
	}
	Database struct {
		Host     string // dispatchd uses the memory store when empty
		Port     int
		User     string
		Password string
		Name     string
	}
	JWT struct {
		SecretKey string
	}
	Dispatchd struct {
		Port            int
		DefaultRadiusKm float64
	}
}

// LoadFromFile loads config from a YAML file, applies defaults, and
// validates basic ranges. A missing file is not an error: defaults
// cover local development end to end.
func LoadFromFile(path string) (*Config, error) {
	var cfg Config

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := parseYAML(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// run on defaults
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}

	if cfg.Realtime.URL == "" {
		cfg.Realtime.URL = "ws://localhost:8080/events"
	}
	if cfg.Realtime.MaxReconnectAttempts == 0 {
		cfg.Realtime.MaxReconnectAttempts = 5
	}
	if cfg.Realtime.ReconnectDelay == 0 {
		cfg.Realtime.ReconnectDelay = time.Second
	}
	if cfg.Realtime.ReconnectDelayCap == 0 {
		cfg.Realtime.ReconnectDelayCap = 5 * time.Second
	}

	if cfg.Location.MinInterval == 0 {
		cfg.Location.MinInterval = 15 * time.Second
	}
	if cfg.Location.MinDisplacement == 0 {
		cfg.Location.MinDisplacement = 100
	}

	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}
	if cfg.RabbitMQ.User == "" {
		cfg.RabbitMQ.User = "guest"
	}
	if cfg.RabbitMQ.Password == "" {
		cfg.RabbitMQ.Password = "guest"
	}

	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "dryjets"
	}

	if cfg.JWT.SecretKey == "" {
		cfg.JWT.SecretKey = os.Getenv("DRYJETS_JWT_SECRET")
	}

	if cfg.Dispatchd.Port == 0 {
		cfg.Dispatchd.Port = 8080
	}
	if cfg.Dispatchd.DefaultRadiusKm == 0 {
		cfg.Dispatchd.DefaultRadiusKm = 10
	}
}

// validate checks basic ranges; required-field decisions are left to the
// consuming mode.
func (c *Config) validate() error {
	var problems []string

	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		problems = append(problems, "server.base_url must start with http:// or https://")
	}
	if !strings.HasPrefix(c.Realtime.URL, "ws://") && !strings.HasPrefix(c.Realtime.URL, "wss://") {
		problems = append(problems, "realtime.url must start with ws:// or wss://")
	}
	if c.Realtime.MaxReconnectAttempts < 1 {
		problems = append(problems, "realtime.max_reconnect_attempts must be >= 1")
	}
	if c.Realtime.ReconnectDelay <= 0 || c.Realtime.ReconnectDelayCap < c.Realtime.ReconnectDelay {
		problems = append(problems, "realtime reconnect delays must be positive and cap >= initial")
	}
	if c.Location.MinInterval <= 0 {
		problems = append(problems, "location.min_interval_seconds must be > 0")
	}
	if c.Location.MinDisplacement < 0 {
		problems = append(problems, "location.min_displacement_meters must be >= 0")
	}
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Dispatchd.Port <= 0 || c.Dispatchd.Port > 65535 {
		problems = append(problems, "dispatchd.port must be in 1..65535")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
