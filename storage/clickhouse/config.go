package clickhouse

import (
	"time"

	"github.com/sawyersec/uds-tcp-graphql/errors"
)

// Config holds ClickHouse connection settings.
type Config struct {
	// Addr is the native-protocol host:port (default: "localhost:9000")
	Addr string `json:"addr" yaml:"addr" env:"GW_CH_ADDR"`

	// Database is the target database (default: "gateway")
	Database string `json:"database" yaml:"database" env:"GW_CH_DATABASE"`

	// Username authenticates the connection (default: "default")
	Username string `json:"username" yaml:"username" env:"GW_CH_USERNAME"`

	// Password authenticates the connection
	Password string `json:"password" yaml:"password" env:"GW_CH_PASSWORD"`

	// DialTimeoutStr is the connection timeout (default: "5s")
	DialTimeoutStr string `json:"dial_timeout,omitempty" yaml:"dial_timeout,omitempty" env:"GW_CH_DIAL_TIMEOUT"`

	// ReadTimeoutStr is the per-query timeout (default: "10s")
	ReadTimeoutStr string `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty" env:"GW_CH_READ_TIMEOUT"`

	dialTimeout time.Duration
	readTimeout time.Duration
}

// Validate fills defaults and rejects invalid values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = "localhost:9000"
	}
	if c.Database == "" {
		c.Database = "gateway"
	}
	if c.Username == "" {
		c.Username = "default"
	}

	if c.DialTimeoutStr == "" {
		c.dialTimeout = 5 * time.Second
	} else {
		d, err := time.ParseDuration(c.DialTimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "parse dial_timeout")
		}
		c.dialTimeout = d
	}

	if c.ReadTimeoutStr == "" {
		c.readTimeout = 10 * time.Second
	} else {
		d, err := time.ParseDuration(c.ReadTimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "parse read_timeout")
		}
		c.readTimeout = d
	}

	if c.dialTimeout <= 0 || c.readTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeouts must be positive")
	}

	return nil
}

// DialTimeout returns the parsed dial timeout.
func (c *Config) DialTimeout() time.Duration {
	return c.dialTimeout
}

// ReadTimeout returns the parsed read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return c.readTimeout
}

// DefaultConfig returns default ClickHouse configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           "localhost:9000",
		Database:       "gateway",
		Username:       "default",
		DialTimeoutStr: "5s",
		ReadTimeoutStr: "10s",
	}
}
