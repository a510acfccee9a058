// Package config assembles the gateway's runtime configuration from a
// YAML file overlaid with environment variables. Environment wins over
// file, file wins over defaults.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/sawyersec/uds-tcp-graphql/errors"
	"github.com/sawyersec/uds-tcp-graphql/gateway/httpbridge"
	"github.com/sawyersec/uds-tcp-graphql/gateway/socket"
	"github.com/sawyersec/uds-tcp-graphql/storage/clickhouse"
)

// Config is the full runtime configuration for the gateway binaries.
type Config struct {
	// LogLevel is the log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level" env:"GW_LOG_LEVEL"`

	// LogFormat is the log format (json, text)
	LogFormat string `yaml:"log_format" env:"GW_LOG_FORMAT"`

	// MetricsPort serves Prometheus scrapes; 0 disables the standalone
	// metrics server
	MetricsPort int `yaml:"metrics_port" env:"GW_METRICS_PORT"`

	// Socket configures the gateway socket server
	Socket socket.Config `yaml:"socket"`

	// HTTP configures the HTTP bridge
	HTTP httpbridge.Config `yaml:"http"`

	// ClickHouse configures the credential store
	ClickHouse clickhouse.Config `yaml:"clickhouse"`
}

// Load reads configuration from path (skipped when empty), overlays
// environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load",
				fmt.Sprintf("read config file %s", path))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load",
				fmt.Sprintf("parse config file %s", path))
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the assembled configuration and fills defaults.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "":
		c.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}

	switch c.LogFormat {
	case "":
		c.LogFormat = "json"
	case "json", "text":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log_format %q", c.LogFormat))
	}

	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("metrics_port %d out of range", c.MetricsPort))
	}

	if err := c.Socket.Validate(); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.ClickHouse.Validate(); err != nil {
		return err
	}
	return nil
}
