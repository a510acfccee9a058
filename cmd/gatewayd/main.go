// Package main implements gatewayd, the GraphQL access-control gateway
// daemon. It binds one socket (unix or tcp), authenticates every
// message against the ClickHouse credential store, authorizes the
// queried fields, and delegates permitted queries to the executor.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sawyersec/uds-tcp-graphql/auth"
	"github.com/sawyersec/uds-tcp-graphql/config"
	"github.com/sawyersec/uds-tcp-graphql/executor"
	"github.com/sawyersec/uds-tcp-graphql/gateway/socket"
	"github.com/sawyersec/uds-tcp-graphql/health"
	"github.com/sawyersec/uds-tcp-graphql/metric"
	"github.com/sawyersec/uds-tcp-graphql/pkg/retry"
	"github.com/sawyersec/uds-tcp-graphql/storage/clickhouse"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "gatewayd"
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
		slog.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags override file and environment for the logging pair
	if cliCfg.LogLevel != "" {
		cfg.LogLevel = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.LogFormat = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("configuration is valid")
		return nil
	}

	logger.Info("starting gateway",
		"network", cfg.Socket.Network,
		"clickhouse", cfg.ClickHouse.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect the credential store, waiting out store boot time
	store, err := clickhouse.New(cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("open clickhouse: %w", err)
	}
	defer store.Close()

	if err := retry.Do(ctx, retry.Startup(), func() error {
		return store.PingWithDeadline(ctx, cfg.ClickHouse.DialTimeout())
	}); err != nil {
		return fmt.Errorf("clickhouse unreachable: %w", err)
	}

	registry := metric.NewRegistry()
	store.WithMetrics(registry.Metrics.StoreQueries)

	// Watch the store so operators see an outage before callers do
	monitor := health.NewMonitor()
	checker := health.NewStoreChecker(store, monitor, logger,
		registry.Metrics.StoreUp, 15*time.Second, cfg.ClickHouse.DialTimeout())
	go checker.Run(ctx)

	pipeline := socket.NewPipeline(cfg.Socket,
		auth.NewResolver(store),
		auth.NewAuthorizer(store),
		executor.NewGraphQL(store, logger),
		logger, registry.Metrics)

	server, err := socket.NewServer(cfg.Socket, pipeline, logger, registry.Metrics)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := server.Setup(); err != nil {
		return fmt.Errorf("bind listener: %w", err)
	}

	// Translate termination signals into context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	// Optional standalone metrics server
	var metricServer *metric.Server
	if cfg.MetricsPort > 0 {
		metricServer = metric.NewServer(cfg.MetricsPort, "/metrics", registry)
		metricServer.SetHealthSource(monitor)
		g.Go(func() error {
			logger.Info("metrics server started", "address", metricServer.Address())
			return metricServer.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			return metricServer.Stop()
		})
	}

	g.Go(func() error {
		return server.Start(gctx, nil)
	})

	startErr := g.Wait()

	if err := server.Stop(cliCfg.ShutdownTimeout); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	if startErr != nil {
		return startErr
	}
	logger.Info("gateway exited")
	return nil
}
