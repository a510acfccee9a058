// Package main implements gwclient, a one-shot wire-protocol client for
// exercising the gateway from the command line: it dials the socket,
// sends one request, prints the decoded response as JSON, and exits
// with the response's embedded status mapped to success or failure.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sawyersec/uds-tcp-graphql/message"
)

const appName = "gwclient"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run() error {
	network := flag.String("network", envOr("GW_NETWORK", "unix"),
		"Gateway transport: unix or tcp (env: GW_NETWORK)")
	addr := flag.String("addr", envOr("GW_CLIENT_ADDR", "/tmp/graphql-gateway.sock"),
		"Socket path or host:port (env: GW_CLIENT_ADDR)")
	apiKey := flag.String("api-key", os.Getenv("GW_CLIENT_API_KEY"),
		"Credential for the api-key header (env: GW_CLIENT_API_KEY)")
	query := flag.String("query", "{ hello }", "GraphQL query to send")
	operationName := flag.String("operation", "", "operationName for multi-operation documents")
	variablesJSON := flag.String("variables", "", "Variables as a JSON object")
	timeout := flag.Duration("timeout", 10*time.Second, "Round-trip timeout")
	flag.Parse()

	req := message.Request{
		Query:         *query,
		OperationName: *operationName,
	}
	req.Headers.APIKey = *apiKey

	if *variablesJSON != "" {
		if err := json.Unmarshal([]byte(*variablesJSON), &req.Variables); err != nil {
			return fmt.Errorf("parse variables: %w", err)
		}
	}

	conn, err := net.DialTimeout(*network, *addr, *timeout)
	if err != nil {
		return fmt.Errorf("dial %s %s: %w", *network, *addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(*timeout)); err != nil {
		return err
	}

	if err := message.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	var resp map[string]any
	if err := message.NewDecoder(conn, 0).Decode(&resp); err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	if err := json.NewEncoder(os.Stdout).Encode(resp); err != nil {
		return err
	}

	if status, ok := resp["status"].(float64); ok && int(status) >= 400 {
		os.Exit(int(status) / 100)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
