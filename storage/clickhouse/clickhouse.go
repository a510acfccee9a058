// Package clickhouse implements storage.Store against a ClickHouse
// database using the native protocol. The schema (users, api_keys,
// permissions) is provisioned by cmd/chtool.
package clickhouse

import (
	"context"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sawyersec/uds-tcp-graphql/errors"
	"github.com/sawyersec/uds-tcp-graphql/storage"
)

// Store is a ClickHouse-backed storage.Store.
type Store struct {
	conn    driver.Conn
	queries *prometheus.CounterVec
}

// Open dials a native-protocol connection pool. The connection is
// lazy; ping to verify reachability.
func Open(cfg Config) (driver.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Store", "Open", "config validation")
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout(),
		ReadTimeout: cfg.ReadTimeout(),
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, errors.WrapFatal(err, "Store", "Open", "open connection")
	}
	return conn, nil
}

// New opens a ClickHouse-backed store.
func New(cfg Config) (*Store, error) {
	conn, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{conn: conn}, nil
}

// WithMetrics attaches a counter incremented once per store query,
// labeled by query kind. Returns the receiver for chaining.
func (s *Store) WithMetrics(queries *prometheus.CounterVec) *Store {
	s.queries = queries
	return s
}

func (s *Store) count(kind string) {
	if s.queries != nil {
		s.queries.WithLabelValues(kind).Inc()
	}
}

// FindActiveKeyByHash looks up the ACTIVE key with the given credential
// hash. Returns (nil, nil) when no row matches, which callers must treat
// the same as a wrong credential.
func (s *Store) FindActiveKeyByHash(ctx context.Context, hash string) (*storage.ApiKeyRecord, error) {
	s.count("find_key")
	rows, err := s.conn.Query(ctx, `
		SELECT id, user_id, key_hash, role, status, created_at
		FROM api_keys
		WHERE key_hash = {hash:String} AND status = 'ACTIVE'
		LIMIT 1
	`, clickhouse.Named("hash", hash))
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "FindActiveKeyByHash", "query api_keys")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.WrapTransient(err, "Store", "FindActiveKeyByHash", "scan api_keys")
		}
		return nil, nil
	}

	var rec storage.ApiKeyRecord
	var role, status string
	if err := rows.Scan(&rec.ID, &rec.UserID, &rec.KeyHash, &role, &status, &rec.CreatedAt); err != nil {
		return nil, errors.WrapTransient(err, "Store", "FindActiveKeyByHash", "scan api_keys")
	}
	rec.Role = storage.Role(role)
	rec.Status = storage.KeyStatus(status)

	return &rec, nil
}

// FindGrants returns the lowercased granted fields for (keyID, action).
func (s *Store) FindGrants(ctx context.Context, keyID string, action storage.Action) (storage.FieldSet, error) {
	s.count("find_grants")
	rows, err := s.conn.Query(ctx, `
		SELECT field
		FROM permissions
		WHERE key_id = {key_id:String} AND action = {action:String}
	`, clickhouse.Named("key_id", keyID), clickhouse.Named("action", string(action)))
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "FindGrants", "query permissions")
	}
	defer rows.Close()

	granted := make(storage.FieldSet)
	for rows.Next() {
		var field string
		if err := rows.Scan(&field); err != nil {
			return nil, errors.WrapTransient(err, "Store", "FindGrants", "scan permissions")
		}
		granted[strings.ToLower(field)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Store", "FindGrants", "iterate permissions")
	}

	return granted, nil
}

// FindUser returns the user row for id, or (nil, nil) when absent.
func (s *Store) FindUser(ctx context.Context, id string) (*storage.User, error) {
	s.count("find_user")
	rows, err := s.conn.Query(ctx, `
		SELECT id, name
		FROM users
		WHERE id = {id:String}
		LIMIT 1
	`, clickhouse.Named("id", id))
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "FindUser", "query users")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.WrapTransient(err, "Store", "FindUser", "scan users")
		}
		return nil, nil
	}

	var user storage.User
	if err := rows.Scan(&user.ID, &user.Name); err != nil {
		return nil, errors.WrapTransient(err, "Store", "FindUser", "scan users")
	}

	return &user, nil
}

// ListKeys returns up to limit keys, newest first.
func (s *Store) ListKeys(ctx context.Context, limit int) ([]storage.ApiKeyRecord, error) {
	s.count("list_keys")
	rows, err := s.conn.Query(ctx, `
		SELECT id, user_id, role, status
		FROM api_keys
		ORDER BY created_at DESC
		LIMIT {limit:UInt32}
	`, clickhouse.Named("limit", uint32(limit)))
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "ListKeys", "query api_keys")
	}
	defer rows.Close()

	var keys []storage.ApiKeyRecord
	for rows.Next() {
		var rec storage.ApiKeyRecord
		var role, status string
		if err := rows.Scan(&rec.ID, &rec.UserID, &role, &status); err != nil {
			return nil, errors.WrapTransient(err, "Store", "ListKeys", "scan api_keys")
		}
		rec.Role = storage.Role(role)
		rec.Status = storage.KeyStatus(status)
		keys = append(keys, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Store", "ListKeys", "iterate api_keys")
	}

	return keys, nil
}

// ListPermissions returns all grants for one key.
func (s *Store) ListPermissions(ctx context.Context, keyID string) ([]storage.PermissionGrant, error) {
	s.count("list_permissions")
	rows, err := s.conn.Query(ctx, `
		SELECT key_id, action, field
		FROM permissions
		WHERE key_id = {key_id:String}
	`, clickhouse.Named("key_id", keyID))
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "ListPermissions", "query permissions")
	}
	defer rows.Close()

	var grants []storage.PermissionGrant
	for rows.Next() {
		var g storage.PermissionGrant
		var action string
		if err := rows.Scan(&g.KeyID, &action, &g.Field); err != nil {
			return nil, errors.WrapTransient(err, "Store", "ListPermissions", "scan permissions")
		}
		g.Action = storage.Action(action)
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "Store", "ListPermissions", "iterate permissions")
	}

	return grants, nil
}

// InsertKey stores a new key record.
func (s *Store) InsertKey(ctx context.Context, rec storage.ApiKeyRecord) error {
	s.count("insert_key")
	err := s.conn.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, key_hash, role, status, created_at)
		VALUES ({id:String}, {user_id:String}, {key_hash:String}, {role:String}, {status:String}, now())
	`,
		clickhouse.Named("id", rec.ID),
		clickhouse.Named("user_id", rec.UserID),
		clickhouse.Named("key_hash", rec.KeyHash),
		clickhouse.Named("role", string(rec.Role)),
		clickhouse.Named("status", string(rec.Status)),
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "InsertKey", "insert api_keys")
	}
	return nil
}

// RevokeKey marks a key REVOKED and stamps revoked_at.
func (s *Store) RevokeKey(ctx context.Context, id string) error {
	s.count("revoke_key")
	err := s.conn.Exec(ctx, `
		ALTER TABLE api_keys
		UPDATE status = 'REVOKED', revoked_at = now()
		WHERE id = {id:String}
	`, clickhouse.Named("id", id))
	if err != nil {
		return errors.WrapTransient(err, "Store", "RevokeKey", "update api_keys")
	}
	return nil
}

// GrantPermission adds a field grant.
func (s *Store) GrantPermission(ctx context.Context, grant storage.PermissionGrant) error {
	s.count("grant_permission")
	err := s.conn.Exec(ctx, `
		INSERT INTO permissions (key_id, action, field)
		VALUES ({key_id:String}, {action:String}, {field:String})
	`,
		clickhouse.Named("key_id", grant.KeyID),
		clickhouse.Named("action", string(grant.Action)),
		clickhouse.Named("field", grant.Field),
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "GrantPermission", "insert permissions")
	}
	return nil
}

// RemovePermission deletes a field grant.
func (s *Store) RemovePermission(ctx context.Context, grant storage.PermissionGrant) error {
	s.count("remove_permission")
	err := s.conn.Exec(ctx, `
		ALTER TABLE permissions
		DELETE WHERE key_id = {key_id:String} AND action = {action:String} AND field = {field:String}
	`,
		clickhouse.Named("key_id", grant.KeyID),
		clickhouse.Named("action", string(grant.Action)),
		clickhouse.Named("field", grant.Field),
	)
	if err != nil {
		return errors.WrapTransient(err, "Store", "RemovePermission", "delete permissions")
	}
	return nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	s.count("ping")
	if err := s.conn.Ping(ctx); err != nil {
		return errors.WrapTransient(err, "Store", "Ping", "ping clickhouse")
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// PingWithDeadline pings with a bounded wait, for startup checks.
func (s *Store) PingWithDeadline(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Ping(ctx)
}

// Ensure Store implements the storage interface
var _ storage.Store = (*Store)(nil)
