// Package main implements gwbridge, the HTTP adapter for the gateway
// wire protocol. Each HTTP request is validated, translated into one
// fresh socket connection to gatewayd, and answered with the gateway's
// relayed response.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/sawyersec/uds-tcp-graphql/config"
	"github.com/sawyersec/uds-tcp-graphql/gateway/httpbridge"
	"github.com/sawyersec/uds-tcp-graphql/metric"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "gwbridge"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("bridge failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("GW_CONFIG"),
		"Path to configuration file, empty for defaults (env: GW_CONFIG)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: json, text")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second,
		"Graceful shutdown timeout")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting bridge",
		"address", cfg.HTTP.BindAddress,
		"gateway", cfg.HTTP.GatewayAddr)

	registry := metric.NewRegistry()
	promServer := metric.NewServer(cfg.MetricsPort, "/metrics", registry)

	server, err := httpbridge.NewServer(cfg.HTTP, logger, registry.Metrics, promServer)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}
	if err := server.Setup(); err != nil {
		return fmt.Errorf("setup bridge: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	startErr := server.Start(ctx, nil)
	if err := server.Stop(*shutdownTimeout); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	if startErr != nil {
		return startErr
	}
	logger.Info("bridge exited")
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel, AddSource: level == "debug"}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}
