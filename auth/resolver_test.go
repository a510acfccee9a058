package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawyersec/uds-tcp-graphql/storage"
	"github.com/sawyersec/uds-tcp-graphql/testutil"
)

func TestHashCredential(t *testing.T) {
	// SHA-256 of "k1", fixed-length lowercase hex
	hash := HashCredential("k1")
	assert.Len(t, hash, 64)
	assert.Equal(t, "6ab9f1eb8f7d3388f4f9d586f66e99fd54080df2c446f0e58668b09c08a16dd0", hash)

	// Deterministic, distinct per input
	assert.Equal(t, hash, HashCredential("k1"))
	assert.NotEqual(t, hash, HashCredential("k2"))
}

func TestResolveActiveKey(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.AddKey(storage.ApiKeyRecord{
		ID:      "key-1",
		UserID:  "user-1",
		KeyHash: HashCredential("k1"),
		Role:    storage.RoleUser,
		Status:  storage.KeyStatusActive,
	})

	resolver := NewResolver(store)
	principal, err := resolver.Resolve(context.Background(), "k1")

	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, "key-1", principal.KeyID)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, storage.RoleUser, principal.Role)
	assert.False(t, principal.IsAdmin())
}

func TestResolveUnknownCredential(t *testing.T) {
	store := testutil.NewMemoryStore()

	resolver := NewResolver(store)
	principal, err := resolver.Resolve(context.Background(), "bogus")

	require.NoError(t, err)
	assert.Nil(t, principal)
}

func TestResolveRevokedKeyIndistinguishableFromUnknown(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.AddKey(storage.ApiKeyRecord{
		ID:      "key-1",
		UserID:  "user-1",
		KeyHash: HashCredential("k1"),
		Role:    storage.RoleUser,
		Status:  storage.KeyStatusActive,
	})
	store.Revoke("key-1")

	resolver := NewResolver(store)

	revoked, err := resolver.Resolve(context.Background(), "k1")
	require.NoError(t, err)

	unknown, err := resolver.Resolve(context.Background(), "never-existed")
	require.NoError(t, err)

	assert.Equal(t, unknown, revoked)
	assert.Nil(t, revoked)
}

func TestResolveLooksUpOncePerCall(t *testing.T) {
	store := testutil.NewMemoryStore()
	resolver := NewResolver(store)

	for i := 0; i < 3; i++ {
		_, err := resolver.Resolve(context.Background(), "k1")
		require.NoError(t, err)
	}

	// No caching layer: every call re-authenticates
	assert.Equal(t, 3, store.CallCount("FindActiveKeyByHash"))
}

func TestResolveStoreError(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Err = errors.New("connection refused")

	resolver := NewResolver(store)
	principal, err := resolver.Resolve(context.Background(), "k1")

	assert.Error(t, err)
	assert.Nil(t, principal)
}
