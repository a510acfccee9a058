package auth

import (
	"context"

	"github.com/sawyersec/uds-tcp-graphql/errors"
	"github.com/sawyersec/uds-tcp-graphql/storage"
)

// Resolver maps presented credentials to principals. It performs exactly
// one store lookup per call and keeps no cache, so a revocation takes
// effect on the very next message at the cost of one store round-trip
// per message.
type Resolver struct {
	store storage.Store
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the principal for a credential, or nil when no ACTIVE
// key matches its hash. A non-existent key and a revoked key produce the
// same nil result so callers cannot distinguish them.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*Principal, error) {
	hash := HashCredential(credential)

	rec, err := r.store.FindActiveKeyByHash(ctx, hash)
	if err != nil {
		return nil, errors.Wrap(err, "Resolver", "Resolve", "key lookup")
	}
	if rec == nil {
		return nil, nil
	}

	return &Principal{
		KeyID:  rec.ID,
		UserID: rec.UserID,
		Role:   rec.Role,
		Status: rec.Status,
	}, nil
}
