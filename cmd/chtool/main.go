// Package main implements chtool, the ClickHouse provisioning tool for
// the gateway. It creates the schema (init) and mints a first ADMIN
// credential (seed-key) so the remaining key management can happen
// through the gateway's own mutations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/sawyersec/uds-tcp-graphql/auth"
	"github.com/sawyersec/uds-tcp-graphql/config"
	"github.com/sawyersec/uds-tcp-graphql/pkg/retry"
	"github.com/sawyersec/uds-tcp-graphql/storage"
	"github.com/sawyersec/uds-tcp-graphql/storage/clickhouse"
)

const appName = "chtool"

// ddl holds the schema, one statement per entry. Identifiers are stored
// as String rather than UUID so the gateway can mint them client-side.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id String,
		email String,
		name String,
		created_at DateTime DEFAULT now()
	) ENGINE = MergeTree ORDER BY id`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id String,
		user_id String,
		key_hash FixedString(64),
		role Enum('ADMIN' = 1, 'USER' = 2),
		status Enum('ACTIVE' = 1, 'REVOKED' = 2),
		created_at DateTime DEFAULT now(),
		revoked_at Nullable(DateTime)
	) ENGINE = MergeTree ORDER BY id`,

	`CREATE TABLE IF NOT EXISTS permissions (
		key_id String,
		action Enum('QUERY' = 1, 'MUTATION' = 2),
		field String,
		created_at DateTime DEFAULT now()
	) ENGINE = MergeTree ORDER BY (key_id, action, field)`,

	`CREATE TABLE IF NOT EXISTS access_logs (
		ts DateTime,
		key_id String,
		operation String,
		fields Array(String),
		status UInt16
	) ENGINE = MergeTree ORDER BY ts`,
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("GW_CONFIG"),
		"Path to configuration file, empty for defaults (env: GW_CONFIG)")
	timeout := flag.Duration("timeout", time.Minute, "Overall command timeout")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, `%s - ClickHouse provisioning for the gateway

Usage: %s [options] <command>

Commands:
  init       Create the database schema
  seed-key   Insert a first ADMIN api key and print it

Options:
`, appName, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("exactly one command required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch flag.Arg(0) {
	case "init":
		return initSchema(ctx, cfg.ClickHouse)
	case "seed-key":
		conn, err := connect(ctx, cfg.ClickHouse)
		if err != nil {
			return err
		}
		defer conn.Close()
		return seedKey(ctx, conn)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", flag.Arg(0))
	}
}

// connect opens a connection and waits out server boot time.
func connect(ctx context.Context, cfg clickhouse.Config) (driver.Conn, error) {
	conn, err := clickhouse.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := retry.Do(ctx, retry.Startup(), func() error {
		return conn.Ping(ctx)
	}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse unreachable at %s: %w", cfg.Addr, err)
	}
	return conn, nil
}

func createDatabaseStmt(name string) string {
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %q", name)
}

// initSchema creates the database, then the tables. The configured
// database may not exist yet, so the create statement runs through the
// server's default database.
func initSchema(ctx context.Context, cfg clickhouse.Config) error {
	bootCfg := cfg
	bootCfg.Database = "default"
	boot, err := connect(ctx, bootCfg)
	if err != nil {
		return err
	}
	if err := boot.Exec(ctx, createDatabaseStmt(cfg.Database)); err != nil {
		_ = boot.Close()
		return fmt.Errorf("create database: %w", err)
	}
	_ = boot.Close()

	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, stmt := range ddl {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	fmt.Println("ok")
	return nil
}

// seedKey mints one ADMIN key bound to a fresh user and prints the
// plaintext credential. The database keeps only the hash; this output
// is the single chance to record the key.
func seedKey(ctx context.Context, conn driver.Conn) error {
	userID := uuid.NewString()
	if err := conn.Exec(ctx,
		`INSERT INTO users (id) VALUES (?)`, userID); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	apiKey := uuid.NewString()
	keyID := uuid.NewString()
	if err := conn.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, key_hash, role, status) VALUES (?, ?, ?, 'ADMIN', 'ACTIVE')`,
		keyID, userID, auth.HashCredential(apiKey)); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}

	out := map[string]string{
		"api_key": apiKey,
		"key_id":  keyID,
		"user_id": userID,
		"role":    string(storage.RoleAdmin),
		"status":  string(storage.KeyStatusActive),
	}
	return json.NewEncoder(os.Stdout).Encode(out)
}
