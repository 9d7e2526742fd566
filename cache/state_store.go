package cache

import (
	"context"
	"crypto/rand"
	"encoding/base64"
)

// StateStore issues and single-use-validates anti-CSRF state values for the
// OAuth2 authorization round trip. A state is consumable exactly once:
// Consume atomically checks existence-and-not-expired and deletes the
// record regardless of outcome.
type StateStore interface {
	// Issue generates a cryptographically random opaque state, records it
	// with the store's TTL, and returns it.
	Issue(ctx context.Context) (string, error)

	// Consume reports whether the state was issued by this deployment and
	// is still live. The record is removed either way, so a second Consume
	// of the same value always fails.
	Consume(ctx context.Context, state string) (bool, error)

	// Close releases any background resources held by the store.
	Close() error
}

// GenerateState returns a 256-bit random value encoded as base64url.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
