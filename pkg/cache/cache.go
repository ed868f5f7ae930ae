// Package cache is the shared key/value collaborator behind the workflow and
// execution stores. Values are JSON-encoded.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not found.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the operations the engine needs from its key/value store.
type Cache interface {
	// Get retrieves a value into dest. Returns ErrCacheMiss when absent.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks whether a key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping checks availability.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// Codec encodes and decodes cached values.
type Codec interface {
	Encode(value interface{}) ([]byte, error)
	Decode(data []byte, dest interface{}) error
}

// JSONCodec implements Codec using encoding/json.
type JSONCodec struct{}

func (JSONCodec) Encode(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec) Decode(data []byte, dest interface{}) error {
	return json.Unmarshal(data, dest)
}

// KeyBuilder builds namespaced cache keys with a consistent separator.
type KeyBuilder struct {
	namespace string
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

func (b *KeyBuilder) Build(parts ...string) string {
	key := b.namespace
	for _, part := range parts {
		if key != "" {
			key += ":"
		}
		key += part
	}
	return key
}
