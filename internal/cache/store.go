// Package cache provides the caching layer used for computed post metadata.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the cache abstraction injected into services. Implementations
// must be safe for concurrent use.
type Store interface {
	// GetJSON reads the value at key into dest. The second return value is
	// false on a miss.
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	// SetJSON stores val at key with the given TTL.
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

func marshalValue(val any) ([]byte, error) {
	return json.Marshal(val)
}

func unmarshalValue(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}
