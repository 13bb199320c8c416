// Package cache provides a content-addressed store for rendered tiles.
//
// Rendering a QR tile is deterministic: the same identifier, tile size,
// caption settings and error-correction level always produce the same
// pixels. The tile producer keys encoded PNG tiles by those inputs and
// reuses them across runs.
//
// # Backends
//
//   - [FileCache]: one JSON entry per key below a local directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for several machines printing
//     overlapping ranges
//   - [NullCache]: never stores anything
//
// # Keys
//
// A [Keyer] turns tile parameters into cache keys. [ScopedKeyer] prefixes
// every key so unrelated runs can share one Redis database.
//
//	c, _ := cache.NewFileCache(dir)
//	key := cache.NewDefaultKeyer().TileKey(100001, cache.TileKeyOpts{Size: "435x435", Caption: true})
//	data, hit, err := c.Get(ctx, key)
//
// Cache failures are never fatal to a run; callers treat them as misses.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value for key. hit is false on a miss or expired entry.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// TileTTL is the lifetime of a cached tile. Tiles never change for a given
// key, so this only bounds disk and memory usage.
const TileTTL = 30 * 24 * time.Hour
