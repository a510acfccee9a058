package httpbridge

import (
	"fmt"
	"time"

	"github.com/sawyersec/uds-tcp-graphql/errors"
)

// Config holds configuration for the HTTP bridge.
type Config struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string `json:"bind_address" yaml:"bind_address" env:"GW_HTTP_ADDR"`

	// Path is the GraphQL endpoint path (default: "/graphql")
	Path string `json:"path" yaml:"path" env:"GW_HTTP_PATH"`

	// GatewayNetwork is the gateway transport to dial: "unix" or "tcp"
	// (default: "unix")
	GatewayNetwork string `json:"gateway_network" yaml:"gateway_network" env:"GW_HTTP_GATEWAY_NETWORK"`

	// GatewayAddr is the socket path or host:port of the gateway
	// (default: "/tmp/graphql-gateway.sock")
	GatewayAddr string `json:"gateway_addr" yaml:"gateway_addr" env:"GW_HTTP_GATEWAY_ADDR"`

	// EnablePlayground enables the GraphQL Playground UI (default: false)
	EnablePlayground bool `json:"enable_playground" yaml:"enable_playground" env:"GW_HTTP_PLAYGROUND"`

	// EnableCORS enables CORS headers (default: false)
	EnableCORS bool `json:"enable_cors" yaml:"enable_cors" env:"GW_HTTP_CORS"`

	// CORSOrigins lists allowed CORS origins (default when CORS is
	// enabled: ["*"])
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins"`

	// TimeoutStr bounds one bridged request, dial included
	// (default: "30s")
	TimeoutStr string `json:"timeout,omitempty" yaml:"timeout" env:"GW_HTTP_TIMEOUT"`

	// timeout is the parsed duration (internal use)
	timeout time.Duration
}

// Validate ensures the configuration is valid and fills defaults.
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		c.BindAddress = ":8080"
	}

	if c.Path == "" {
		c.Path = "/graphql"
	}
	if c.Path[0] != '/' {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"path must start with /")
	}

	if c.GatewayNetwork == "" {
		c.GatewayNetwork = "unix"
	}
	if c.GatewayNetwork != "unix" && c.GatewayNetwork != "tcp" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("gateway_network must be unix or tcp, got %q", c.GatewayNetwork))
	}
	if c.GatewayAddr == "" {
		if c.GatewayNetwork == "unix" {
			c.GatewayAddr = "/tmp/graphql-gateway.sock"
		} else {
			c.GatewayAddr = "127.0.0.1:4000"
		}
	}

	if c.TimeoutStr == "" {
		c.timeout = 30 * time.Second
	} else {
		timeout, err := time.ParseDuration(c.TimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate",
				fmt.Sprintf("invalid timeout format: %s", c.TimeoutStr))
		}
		if timeout < 100*time.Millisecond || timeout > 5*time.Minute {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"timeout must be between 100ms and 5m")
		}
		c.timeout = timeout
	}

	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}

	return nil
}

// Timeout returns the parsed request timeout.
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// DefaultConfig returns default HTTP bridge configuration.
func DefaultConfig() Config {
	return Config{
		BindAddress:    ":8080",
		Path:           "/graphql",
		GatewayNetwork: "unix",
		GatewayAddr:    "/tmp/graphql-gateway.sock",
		TimeoutStr:     "30s",
	}
}
