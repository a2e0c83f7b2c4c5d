// Package cache holds read results keyed by query parameters. Writes never
// patch entries; they drop the whole cache so the next read refetches.
package cache

import (
	"context"
	"net/url"
	"time"
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// Key builds a cache key from an operation name and its query parameters.
// Parameters are sorted, so equal queries share a key.
func Key(op string, q url.Values) string {
	if len(q) == 0 {
		return op
	}
	return op + ":" + q.Encode()
}
