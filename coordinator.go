package catmig

import (
	"context"
	"time"
)

// Coordinator is the contract the chunk scheduler requires from the external
// coordination service: atomic set-if-absent with TTL for leases, hash updates
// for the chunk map, and key deletion. The redis subpackage provides the real
// implementation; an in-memory mock backs the tests.
type Coordinator interface {
	// Ping tests connectivity; failure is fatal to the worker.
	Ping(ctx context.Context) error

	// SetNX atomically creates key with value and TTL iff absent. Returns
	// whether the key was created.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// Get retrieves a string value. Returns (found, value, error-from-backend).
	Get(ctx context.Context, key string) (bool, string, error)
	// Expire extends key's TTL. Returns whether the key existed.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys []string) error

	// HSet writes one field of a hash key.
	HSet(ctx context.Context, key string, field string, value string) error
	// HGet reads one field of a hash key. Returns (found, value, error).
	HGet(ctx context.Context, key string, field string) (bool, string, error)
	// HGetAll reads the whole hash; an absent key yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HLen returns the field count of a hash key.
	HLen(ctx context.Context, key string) (int64, error)
}
