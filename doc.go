// Package gateway fronts a GraphQL execution engine with a field-level
// access-control gateway reachable over a newline-delimited JSON socket
// protocol, plus an HTTP adapter that speaks that protocol on the
// caller's behalf.
//
// # Architecture
//
// A message travels one fixed pipeline:
//
//	client → message (decode) → auth.Resolver → auth.Authorizer →
//	executor → message (encode) → client
//
// The gateway server (gateway/socket) binds exactly one listening
// socket, unix or tcp, and runs the pipeline once per decoded message.
// Connections are concurrent with each other; messages within one
// connection are strictly sequential. The HTTP bridge
// (gateway/httpbridge) is a stateless adapter: one HTTP request becomes
// one fresh socket connection, one message, one response.
//
// Identity lives in ClickHouse (storage/clickhouse): api_keys rows hold
// SHA-256 hashes of credentials, permissions rows hold per-key
// (action, field) grants. Every message re-authenticates and
// re-authorizes against the store; nothing is cached, so a revocation
// is effective on the very next message.
//
// # Packages
//
//   - message: wire protocol types, NDJSON codec, error envelopes
//   - auth: credential hashing, principal resolution, field-level
//     authorization
//   - executor: resolver-dispatch GraphQL executor over the store
//   - storage, storage/clickhouse: the store interface and its
//     ClickHouse implementation
//   - gateway/socket, gateway/httpbridge: the two transports
//   - config, errors, health, metric: runtime assembly and operations
//
// # Binaries
//
//   - cmd/gatewayd: the gateway daemon
//   - cmd/gwbridge: the HTTP bridge
//   - cmd/chtool: ClickHouse schema provisioning and key seeding
//   - cmd/gwclient: one-shot wire-protocol client
package gateway
