// Package testutil provides in-memory fakes for gateway tests. The
// MemoryStore implements storage.Store without a database so pipeline,
// authorization, and executor tests run hermetically.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sawyersec/uds-tcp-graphql/storage"
)

// MemoryStore is a thread-safe in-memory storage.Store with failure
// injection. The zero value is not usable; call NewMemoryStore.
type MemoryStore struct {
	mu    sync.RWMutex
	keys  map[string]storage.ApiKeyRecord      // by key ID
	users map[string]storage.User              // by user ID
	perms map[string][]storage.PermissionGrant // by key ID

	// Err, when set, is returned by every store method. Use it to
	// exercise INTERNAL_SERVER_ERROR paths.
	Err error

	// Calls counts method invocations by name.
	Calls map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:  make(map[string]storage.ApiKeyRecord),
		users: make(map[string]storage.User),
		perms: make(map[string][]storage.PermissionGrant),
		Calls: make(map[string]int),
	}
}

// AddUser seeds a user row.
func (m *MemoryStore) AddUser(user storage.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// AddKey seeds an API key record.
func (m *MemoryStore) AddKey(rec storage.ApiKeyRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.keys[rec.ID] = rec
}

// Grant seeds a permission grant.
func (m *MemoryStore) Grant(keyID string, action storage.Action, field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perms[keyID] = append(m.perms[keyID], storage.PermissionGrant{
		KeyID:  keyID,
		Action: action,
		Field:  field,
	})
}

// Revoke flips a seeded key to REVOKED.
func (m *MemoryStore) Revoke(keyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.keys[keyID]; ok {
		rec.Status = storage.KeyStatusRevoked
		now := time.Now()
		rec.RevokedAt = &now
		m.keys[keyID] = rec
	}
}

func (m *MemoryStore) record(method string) error {
	m.mu.Lock()
	m.Calls[method]++
	m.mu.Unlock()
	return m.Err
}

// FindActiveKeyByHash implements storage.Store.
func (m *MemoryStore) FindActiveKeyByHash(_ context.Context, hash string) (*storage.ApiKeyRecord, error) {
	if err := m.record("FindActiveKeyByHash"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.keys {
		if rec.KeyHash == hash && rec.Status == storage.KeyStatusActive {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

// FindGrants implements storage.Store.
func (m *MemoryStore) FindGrants(_ context.Context, keyID string, action storage.Action) (storage.FieldSet, error) {
	if err := m.record("FindGrants"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	granted := make(storage.FieldSet)
	for _, g := range m.perms[keyID] {
		if g.Action == action {
			granted[strings.ToLower(g.Field)] = struct{}{}
		}
	}
	return granted, nil
}

// FindUser implements storage.Store.
func (m *MemoryStore) FindUser(_ context.Context, id string) (*storage.User, error) {
	if err := m.record("FindUser"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if user, ok := m.users[id]; ok {
		found := user
		return &found, nil
	}
	return nil, nil
}

// ListKeys implements storage.Store.
func (m *MemoryStore) ListKeys(_ context.Context, limit int) ([]storage.ApiKeyRecord, error) {
	if err := m.record("ListKeys"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]storage.ApiKeyRecord, 0, len(m.keys))
	for _, rec := range m.keys {
		keys = append(keys, rec)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

// ListPermissions implements storage.Store.
func (m *MemoryStore) ListPermissions(_ context.Context, keyID string) ([]storage.PermissionGrant, error) {
	if err := m.record("ListPermissions"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	grants := make([]storage.PermissionGrant, len(m.perms[keyID]))
	copy(grants, m.perms[keyID])
	return grants, nil
}

// InsertKey implements storage.Store.
func (m *MemoryStore) InsertKey(_ context.Context, rec storage.ApiKeyRecord) error {
	if err := m.record("InsertKey"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.keys[rec.ID] = rec
	return nil
}

// RevokeKey implements storage.Store.
func (m *MemoryStore) RevokeKey(_ context.Context, id string) error {
	if err := m.record("RevokeKey"); err != nil {
		return err
	}
	m.Revoke(id)
	return nil
}

// GrantPermission implements storage.Store.
func (m *MemoryStore) GrantPermission(_ context.Context, grant storage.PermissionGrant) error {
	if err := m.record("GrantPermission"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.perms[grant.KeyID] = append(m.perms[grant.KeyID], grant)
	return nil
}

// RemovePermission implements storage.Store.
func (m *MemoryStore) RemovePermission(_ context.Context, grant storage.PermissionGrant) error {
	if err := m.record("RemovePermission"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.perms[grant.KeyID][:0]
	for _, g := range m.perms[grant.KeyID] {
		if g.Action != grant.Action || !strings.EqualFold(g.Field, grant.Field) {
			kept = append(kept, g)
		}
	}
	m.perms[grant.KeyID] = kept
	return nil
}

// Ping implements storage.Store.
func (m *MemoryStore) Ping(_ context.Context) error {
	return m.record("Ping")
}

// Close implements storage.Store.
func (m *MemoryStore) Close() error {
	return nil
}

// CallCount returns how many times a method was invoked.
func (m *MemoryStore) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Calls[method]
}

// Ensure MemoryStore implements the storage interface
var _ storage.Store = (*MemoryStore)(nil)
