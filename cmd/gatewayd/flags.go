package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("GW_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: GW_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("GW_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: GW_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("GW_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: GW_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("GW_LOG_FORMAT", ""),
		"Log format: json, text (env: GW_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("GW_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: GW_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()
	return cfg
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - GraphQL access-control gateway

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run on the default unix socket
  %s

  # Run with a config file
  %s --config=/etc/gateway/gateway.yaml

  # Run on TCP with debug logging
  GW_NETWORK=tcp GW_ADDR=127.0.0.1:4000 %s --log-level=debug

  # Validate configuration only
  %s --config=/etc/gateway/gateway.yaml --validate

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
