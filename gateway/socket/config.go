package socket

import (
	"fmt"
	"time"

	"github.com/sawyersec/uds-tcp-graphql/errors"
)

// Network names for the listening socket.
const (
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"
)

// Config holds configuration for the gateway socket server.
type Config struct {
	// Network selects the transport: "unix" or "tcp" (default: "unix").
	// The server binds exactly one address, never both.
	Network string `json:"network" yaml:"network" env:"GW_NETWORK"`

	// SocketPath is the filesystem path for unix mode
	// (default: "/tmp/graphql-gateway.sock")
	SocketPath string `json:"socket_path" yaml:"socket_path" env:"GW_SOCKET_PATH"`

	// Addr is the host:port for tcp mode (default: "127.0.0.1:4000")
	Addr string `json:"addr" yaml:"addr" env:"GW_ADDR"`

	// MaxMessageBytes bounds one wire frame (default: 1 MiB). Oversized
	// frames are answered with BAD_REQUEST, never buffered whole.
	MaxMessageBytes int `json:"max_message_bytes" yaml:"max_message_bytes" env:"GW_MAX_MESSAGE_BYTES"`

	// RequestTimeoutStr bounds one message's pipeline run, store and
	// executor round-trips included (default: "30s").
	RequestTimeoutStr string `json:"request_timeout" yaml:"request_timeout" env:"GW_REQUEST_TIMEOUT"`

	// RateLimit is the per-connection message rate in messages/second.
	// Zero disables limiting (default: 0).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" env:"GW_RATE_LIMIT"`

	// RateBurst is the per-connection burst size when limiting is on
	// (default: 10).
	RateBurst int `json:"rate_burst" yaml:"rate_burst" env:"GW_RATE_BURST"`

	// requestTimeout is the parsed duration (internal use)
	requestTimeout time.Duration
}

// Validate ensures the configuration is valid and fills defaults.
func (c *Config) Validate() error {
	if c.Network == "" {
		c.Network = NetworkUnix
	}

	switch c.Network {
	case NetworkUnix:
		if c.SocketPath == "" {
			c.SocketPath = "/tmp/graphql-gateway.sock"
		}
	case NetworkTCP:
		if c.Addr == "" {
			c.Addr = "127.0.0.1:4000"
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("network must be %q or %q, got %q", NetworkUnix, NetworkTCP, c.Network))
	}

	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = 1 << 20
	}
	if c.MaxMessageBytes < 1024 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_message_bytes must be at least 1024")
	}

	if c.RequestTimeoutStr == "" {
		c.requestTimeout = 30 * time.Second
	} else {
		timeout, err := time.ParseDuration(c.RequestTimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate",
				fmt.Sprintf("invalid request_timeout format: %s", c.RequestTimeoutStr))
		}
		if timeout < 100*time.Millisecond || timeout > 5*time.Minute {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"request_timeout must be between 100ms and 5m")
		}
		c.requestTimeout = timeout
	}

	if c.RateLimit < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		c.RateBurst = 10
	}

	return nil
}

// RequestTimeout returns the parsed per-message deadline.
func (c *Config) RequestTimeout() time.Duration {
	return c.requestTimeout
}

// DefaultConfig returns default gateway socket server configuration.
func DefaultConfig() Config {
	return Config{
		Network:           NetworkUnix,
		SocketPath:        "/tmp/graphql-gateway.sock",
		Addr:              "127.0.0.1:4000",
		MaxMessageBytes:   1 << 20,
		RequestTimeoutStr: "30s",
		RateBurst:         10,
	}
}
