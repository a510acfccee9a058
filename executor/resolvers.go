package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sawyersec/uds-tcp-graphql/auth"
	"github.com/sawyersec/uds-tcp-graphql/storage"
)

// errForbidden is what admin-only resolvers raise for non-admin callers.
// The authorizer normally denies these requests before execution; this
// guard covers principals holding an explicit grant on an admin field.
var errForbidden = errors.New("forbidden")

// adminKeysLimit caps the adminKeys listing.
const adminKeysLimit = 100

func requireAdmin(principal *auth.Principal) error {
	if !principal.IsAdmin() {
		return errForbidden
	}
	return nil
}

func (e *GraphQL) resolveHello(_ context.Context, _ map[string]any, _ *auth.Principal) (any, error) {
	return "world", nil
}

func (e *GraphQL) resolveMe(ctx context.Context, _ map[string]any, principal *auth.Principal) (any, error) {
	if principal == nil {
		return nil, nil
	}

	user, err := e.store.FindUser(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return map[string]any{
		"id":     user.ID,
		"name":   user.Name,
		"role":   string(principal.Role),
		"status": string(principal.Status),
	}, nil
}

func (e *GraphQL) resolveAdminHealth(_ context.Context, _ map[string]any, principal *auth.Principal) (any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (e *GraphQL) resolveAdminKeys(ctx context.Context, _ map[string]any, principal *auth.Principal) (any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	keys, err := e.store.ListKeys(ctx, adminKeysLimit)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	out := make([]any, 0, len(keys))
	for _, rec := range keys {
		out = append(out, map[string]any{
			"id":     rec.ID,
			"userId": rec.UserID,
			"role":   string(rec.Role),
			"status": string(rec.Status),
		})
	}
	return out, nil
}

func (e *GraphQL) resolveAdminPermissions(ctx context.Context, args map[string]any, principal *auth.Principal) (any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	keyID, err := stringArg(args, "keyId")
	if err != nil {
		return nil, err
	}

	grants, err := e.store.ListPermissions(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}

	out := make([]any, 0, len(grants))
	for _, g := range grants {
		out = append(out, map[string]any{
			"keyId":  g.KeyID,
			"action": string(g.Action),
			"field":  g.Field,
		})
	}
	return out, nil
}

func (e *GraphQL) resolveCreateAPIKey(ctx context.Context, args map[string]any, principal *auth.Principal) (any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	role, err := stringArg(args, "role")
	if err != nil {
		return nil, err
	}

	userID, _ := args["userId"].(string)
	if userID == "" {
		userID = principal.UserID
	}

	// The plaintext key exists only in this response; the store holds
	// its hash.
	apiKey := uuid.NewString()
	rec := storage.ApiKeyRecord{
		ID:      uuid.NewString(),
		UserID:  userID,
		KeyHash: auth.HashCredential(apiKey),
		Role:    storage.Role(role),
		Status:  storage.KeyStatusActive,
	}

	if err := e.store.InsertKey(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert key: %w", err)
	}

	return map[string]any{
		"apiKey": apiKey,
		"id":     rec.ID,
		"userId": rec.UserID,
		"role":   string(rec.Role),
		"status": string(rec.Status),
	}, nil
}

func (e *GraphQL) resolveRevokeAPIKey(ctx context.Context, args map[string]any, principal *auth.Principal) (any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	id, err := stringArg(args, "id")
	if err != nil {
		return nil, err
	}

	if err := e.store.RevokeKey(ctx, id); err != nil {
		return nil, fmt.Errorf("revoke key: %w", err)
	}

	return map[string]any{
		"id":     id,
		"status": string(storage.KeyStatusRevoked),
	}, nil
}

func (e *GraphQL) resolveGrantPermission(ctx context.Context, args map[string]any, principal *auth.Principal) (any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	grant, err := grantFromArgs(args)
	if err != nil {
		return nil, err
	}

	if err := e.store.GrantPermission(ctx, grant); err != nil {
		return nil, fmt.Errorf("grant permission: %w", err)
	}
	return true, nil
}

func (e *GraphQL) resolveRemovePermission(ctx context.Context, args map[string]any, principal *auth.Principal) (any, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	grant, err := grantFromArgs(args)
	if err != nil {
		return nil, err
	}

	if err := e.store.RemovePermission(ctx, grant); err != nil {
		return nil, fmt.Errorf("remove permission: %w", err)
	}
	return true, nil
}

func grantFromArgs(args map[string]any) (storage.PermissionGrant, error) {
	keyID, err := stringArg(args, "keyId")
	if err != nil {
		return storage.PermissionGrant{}, err
	}
	action, err := stringArg(args, "action")
	if err != nil {
		return storage.PermissionGrant{}, err
	}
	field, err := stringArg(args, "field")
	if err != nil {
		return storage.PermissionGrant{}, err
	}

	return storage.PermissionGrant{
		KeyID:  keyID,
		Action: storage.Action(action),
		Field:  field,
	}, nil
}

func stringArg(args map[string]any, name string) (string, error) {
	value, _ := args[name].(string)
	if value == "" {
		return "", fmt.Errorf("argument %q is required", name)
	}
	return value, nil
}
