// Package storage defines the key/permission store the gateway reads its
// identity data from. The gateway treats the store as read-mostly: the
// pipeline only ever calls FindActiveKeyByHash and FindGrants; the
// mutation methods back the admin-only executor resolvers.
package storage

import (
	"context"
	"time"
)

// Role is the coarse access level attached to an API key.
type Role string

// Roles understood by the authorization engine.
const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// KeyStatus is the lifecycle state of an API key. There is no expiry
// beyond explicit revocation.
type KeyStatus string

// Key lifecycle states.
const (
	KeyStatusActive  KeyStatus = "ACTIVE"
	KeyStatusRevoked KeyStatus = "REVOKED"
)

// Action is the GraphQL operation class a grant applies to.
type Action string

// Grantable actions.
const (
	ActionQuery    Action = "QUERY"
	ActionMutation Action = "MUTATION"
)

// Wildcard is the grant field value that allows every field for an action.
const Wildcard = "*"

// ApiKeyRecord is one stored API key. Only the credential's SHA-256 hash
// is ever stored; the plaintext key exists only in the caller's hands.
type ApiKeyRecord struct {
	ID        string
	UserID    string
	KeyHash   string
	Role      Role
	Status    KeyStatus
	CreatedAt time.Time
	RevokedAt *time.Time
}

// PermissionGrant allows one top-level field (or the wildcard) for an
// action on a key. Field comparison is case-insensitive; the store
// returns fields lowercased.
type PermissionGrant struct {
	KeyID  string
	Action Action
	Field  string
}

// User is the minimal user row the `me` resolver reads.
type User struct {
	ID   string
	Name string
}

// FieldSet is the set of granted field names for one (key, action) pair.
type FieldSet map[string]struct{}

// Contains reports whether the set grants the given (lowercased) field.
func (s FieldSet) Contains(field string) bool {
	_, ok := s[field]
	return ok
}

// Store is the persistence interface the gateway depends on.
type Store interface {
	// FindActiveKeyByHash returns the ACTIVE key whose stored hash equals
	// hash, or (nil, nil) when no such key exists. Revoked and unknown
	// keys are indistinguishable to callers.
	FindActiveKeyByHash(ctx context.Context, hash string) (*ApiKeyRecord, error)

	// FindGrants returns the granted field set for a key and action,
	// lowercased. An empty set is not an error.
	FindGrants(ctx context.Context, keyID string, action Action) (FieldSet, error)

	// FindUser returns the user row for id, or (nil, nil) when absent.
	FindUser(ctx context.Context, id string) (*User, error)

	// ListKeys returns up to limit keys, newest first.
	ListKeys(ctx context.Context, limit int) ([]ApiKeyRecord, error)

	// ListPermissions returns all grants for one key.
	ListPermissions(ctx context.Context, keyID string) ([]PermissionGrant, error)

	// InsertKey stores a new key record.
	InsertKey(ctx context.Context, rec ApiKeyRecord) error

	// RevokeKey marks a key REVOKED and stamps revoked_at.
	RevokeKey(ctx context.Context, id string) error

	// GrantPermission adds a field grant.
	GrantPermission(ctx context.Context, grant PermissionGrant) error

	// RemovePermission deletes a field grant.
	RemovePermission(ctx context.Context, grant PermissionGrant) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
