package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores opaque byte values under namespaced keys.
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, hit bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Key derives a fixed-length key for content that may be arbitrarily long,
// such as a sentence to synthesize.
func Key(namespace, content string) string {
	sum := sha256.Sum256([]byte(content))
	return namespace + ":" + hex.EncodeToString(sum[:])
}
