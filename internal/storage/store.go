package storage

import (
	"context"
	"time"
)

// SessionStore tracks revoked access tokens (logout before expiry).
// Implementations: redis.Client, memory.Client (for -dev without Redis).
type SessionStore interface {
	// Revoke marks a token id as revoked until it would have expired anyway.
	Revoke(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	// IsRevoked reports whether the token id has been revoked.
	IsRevoked(ctx context.Context, tokenID, userID string) (bool, error)
	Close() error
}
