// Package auth implements the gateway's authentication and authorization
// pipeline stages: credential-to-principal resolution and field-level
// query authorization.
package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sawyersec/uds-tcp-graphql/storage"
)

// Principal is an authenticated identity, derived fresh for every
// message and never cached across messages, even on one connection.
type Principal struct {
	KeyID  string
	UserID string
	Role   storage.Role
	Status storage.KeyStatus
}

// IsAdmin reports whether the principal bypasses field-level checks.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == storage.RoleAdmin
}

// HashCredential returns the SHA-256 digest of a credential as a
// 64-character lowercase hex string, matching the stored key_hash format.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
