package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type SecurityConfig struct {
	SigningSecret   string        `yaml:"signing_secret"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	RateLimitMax    int           `yaml:"rate_limit_max"`
}

type DispatchConfig struct {
	PollInterval  time.Duration   `yaml:"poll_interval"`
	SocketTimeout time.Duration   `yaml:"socket_timeout"`
	MaxAttempts   int             `yaml:"max_attempts"`
	Backoff       []time.Duration `yaml:"backoff"`
}

type MonitorConfig struct {
	Interval         time.Duration `yaml:"interval"`
	Window           time.Duration `yaml:"window"`
	FailureThreshold int           `yaml:"failure_threshold"`
	AlertURL         string        `yaml:"alert_url"`
	AlertSecret      string        `yaml:"alert_secret"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/labelrelay.db",
		},
		Security: SecurityConfig{
			RateLimitWindow: time.Minute,
			RateLimitMax:    90,
		},
		Dispatch: DispatchConfig{
			PollInterval:  2 * time.Second,
			SocketTimeout: 7 * time.Second,
			MaxAttempts:   5,
			Backoff: []time.Duration{
				2 * time.Second,
				5 * time.Second,
				15 * time.Second,
				30 * time.Second,
				60 * time.Second,
			},
		},
		Monitor: MonitorConfig{
			Interval:         time.Minute,
			Window:           10 * time.Minute,
			FailureThreshold: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LABELRELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("LABELRELAY_DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("LABELRELAY_SIGNING_SECRET"); v != "" {
		c.Security.SigningSecret = v
	}

	if v := os.Getenv("LABELRELAY_ALERT_URL"); v != "" {
		c.Monitor.AlertURL = v
	}

	if v := os.Getenv("LABELRELAY_ALERT_SECRET"); v != "" {
		c.Monitor.AlertSecret = v
	}

	if v := os.Getenv("LABELRELAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Security.SigningSecret == "" {
		return fmt.Errorf("signing secret is required")
	}

	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}

	if c.Security.RateLimitMax < 1 {
		return fmt.Errorf("rate limit max must be at least 1")
	}

	if c.Dispatch.PollInterval <= 0 {
		return fmt.Errorf("dispatch poll interval must be positive")
	}

	if c.Dispatch.SocketTimeout <= 0 {
		return fmt.Errorf("dispatch socket timeout must be positive")
	}

	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch max attempts must be at least 1")
	}

	if len(c.Dispatch.Backoff) == 0 {
		return fmt.Errorf("dispatch backoff schedule must not be empty")
	}
	for _, d := range c.Dispatch.Backoff {
		if d <= 0 {
			return fmt.Errorf("dispatch backoff entries must be positive")
		}
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}

	if c.Monitor.Window <= 0 {
		return fmt.Errorf("monitor window must be positive")
	}

	if c.Monitor.FailureThreshold < 1 {
		return fmt.Errorf("monitor failure threshold must be at least 1")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}
