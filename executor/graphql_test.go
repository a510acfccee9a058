package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawyersec/uds-tcp-graphql/auth"
	"github.com/sawyersec/uds-tcp-graphql/message"
	"github.com/sawyersec/uds-tcp-graphql/storage"
	"github.com/sawyersec/uds-tcp-graphql/testutil"
)

func newTestExecutor(t *testing.T) (*GraphQL, *testutil.MemoryStore) {
	t.Helper()
	store := testutil.NewMemoryStore()
	store.AddUser(storage.User{ID: "user-1", Name: "Ada"})
	store.AddKey(storage.ApiKeyRecord{
		ID:      "key-1",
		UserID:  "user-1",
		KeyHash: auth.HashCredential("k1"),
		Role:    storage.RoleUser,
		Status:  storage.KeyStatusActive,
	})
	return NewGraphQL(store, nil), store
}

func user() *auth.Principal {
	return &auth.Principal{KeyID: "key-1", UserID: "user-1", Role: storage.RoleUser, Status: storage.KeyStatusActive}
}

func admin() *auth.Principal {
	return &auth.Principal{KeyID: "key-a", UserID: "user-a", Role: storage.RoleAdmin, Status: storage.KeyStatusActive}
}

func TestExecuteHello(t *testing.T) {
	exec, _ := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{Query: "{ hello }", Principal: user()})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "world", res.Data["hello"])
}

func TestExecuteMe(t *testing.T) {
	exec, _ := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{Query: "{ me }", Principal: user()})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	me := res.Data["me"].(map[string]any)
	assert.Equal(t, "user-1", me["id"])
	assert.Equal(t, "Ada", me["name"])
	assert.Equal(t, "USER", me["role"])
	assert.Equal(t, "ACTIVE", me["status"])
}

func TestExecuteMeUnknownUserIsNull(t *testing.T) {
	exec, _ := newTestExecutor(t)

	principal := user()
	principal.UserID = "ghost"

	res, err := exec.Execute(context.Background(), Request{Query: "{ me }", Principal: principal})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Nil(t, res.Data["me"])
}

func TestExecuteParseFailure(t *testing.T) {
	exec, _ := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{Query: "{ hello", Principal: user()})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, message.CodeParseFailed, res.Errors[0].Code())
	assert.Equal(t, 501, res.Status)
	assert.True(t, res.HasParseFailure())
	assert.Nil(t, res.Data)
}

func TestExecuteUnknownField(t *testing.T) {
	exec, _ := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{Query: "{ nonsense }", Principal: user()})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, message.CodeValidation, res.Errors[0].Code())
	assert.Zero(t, res.Status)
	assert.False(t, res.HasParseFailure())
}

func TestExecuteIntrospectionNotServed(t *testing.T) {
	exec, _ := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{
		Query:     "{ __schema { types { name } } }",
		Principal: admin(),
	})
	require.NoError(t, err)

	// Validation error, not a parse failure: status stays unset so the
	// transport relays its default
	require.Len(t, res.Errors, 1)
	assert.Equal(t, message.CodeValidation, res.Errors[0].Code())
	assert.Zero(t, res.Status)
}

func TestExecuteAdminFieldsRequireAdmin(t *testing.T) {
	exec, _ := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{Query: "{ adminHealth }", Principal: user()})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "forbidden", res.Errors[0].Message)
	assert.Equal(t, message.CodeInternal, res.Errors[0].Code())
	assert.Nil(t, res.Data["adminHealth"])

	res, err = exec.Execute(context.Background(), Request{Query: "{ adminHealth }", Principal: admin()})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "ok", res.Data["adminHealth"])
}

func TestExecuteAdminKeys(t *testing.T) {
	exec, _ := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{
		Query:     "{ adminKeys { id userId role status } }",
		Principal: admin(),
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	keys := res.Data["adminKeys"].([]any)
	require.Len(t, keys, 1)
	first := keys[0].(map[string]any)
	assert.Equal(t, "key-1", first["id"])
	assert.Equal(t, "USER", first["role"])
}

func TestExecuteCreateAndRevokeKey(t *testing.T) {
	exec, store := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{
		Query:     `mutation { createApiKey(role: "USER") { apiKey id userId role status } }`,
		Principal: admin(),
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	created := res.Data["createApiKey"].(map[string]any)
	plaintext := created["apiKey"].(string)
	keyID := created["id"].(string)
	assert.NotEmpty(t, plaintext)
	assert.Equal(t, "user-a", created["userId"]) // defaults to the caller
	assert.Equal(t, "ACTIVE", created["status"])

	// The stored record holds the hash, never the plaintext
	rec, err := store.FindActiveKeyByHash(context.Background(), auth.HashCredential(plaintext))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, keyID, rec.ID)

	// Revoke and verify the key no longer authenticates
	res, err = exec.Execute(context.Background(), Request{
		Query:         `mutation Revoke($id: ID!) { revokeApiKey(id: $id) { id status } }`,
		Variables:     map[string]any{"id": keyID},
		OperationName: "Revoke",
		Principal:     admin(),
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	revoked := res.Data["revokeApiKey"].(map[string]any)
	assert.Equal(t, "REVOKED", revoked["status"])

	rec, err = store.FindActiveKeyByHash(context.Background(), auth.HashCredential(plaintext))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestExecuteGrantAndRemovePermission(t *testing.T) {
	exec, store := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{
		Query:     `mutation { grantPermission(keyId: "key-1", action: "QUERY", field: "me") }`,
		Principal: admin(),
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	assert.Equal(t, true, res.Data["grantPermission"])

	granted, err := store.FindGrants(context.Background(), "key-1", storage.ActionQuery)
	require.NoError(t, err)
	assert.True(t, granted.Contains("me"))

	res, err = exec.Execute(context.Background(), Request{
		Query:     `mutation { removePermission(keyId: "key-1", action: "QUERY", field: "me") }`,
		Principal: admin(),
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	granted, err = store.FindGrants(context.Background(), "key-1", storage.ActionQuery)
	require.NoError(t, err)
	assert.False(t, granted.Contains("me"))
}

func TestExecuteOperationSelection(t *testing.T) {
	exec, _ := newTestExecutor(t)
	doc := "query A { hello } query B { me }"

	res, err := exec.Execute(context.Background(), Request{
		Query:         doc,
		OperationName: "A",
		Principal:     user(),
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	assert.Equal(t, "world", res.Data["hello"])

	// Multiple operations without a name is a validation error
	res, err = exec.Execute(context.Background(), Request{Query: doc, Principal: user()})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, message.CodeValidation, res.Errors[0].Code())

	// Unknown operation name
	res, err = exec.Execute(context.Background(), Request{
		Query:         doc,
		OperationName: "C",
		Principal:     user(),
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
}

func TestExecuteFieldAlias(t *testing.T) {
	exec, _ := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), Request{
		Query:     "{ greeting: hello }",
		Principal: user(),
	})
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	assert.Equal(t, "world", res.Data["greeting"])
}

func TestExecuteResolverErrorIsSanitized(t *testing.T) {
	exec, store := newTestExecutor(t)
	store.Err = errors.New("clickhouse: connection refused to 10.0.0.3:9000")

	res, err := exec.Execute(context.Background(), Request{Query: "{ me }", Principal: user()})
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Internal Server Error", res.Errors[0].Message)
	assert.NotContains(t, res.Errors[0].Message, "10.0.0.3")
}
