package dream

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is the interface for caching query results.
// Implementations may be backed by Redis, Memcached or process memory.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// CacheKey identifies a cached read. Keys of one table share the
// TablePrefix so writes can invalidate them together.
type CacheKey struct {
	Table     string
	Operation string
	Query     string
	Args      []any
}

// TablePrefix returns the prefix shared by all keys of a table.
func TablePrefix(table string) string {
	return "dream:" + table + ":"
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	var sb strings.Builder
	sb.WriteString(TablePrefix(k.Table))
	sb.WriteString(k.Operation)
	sb.WriteByte(':')
	sb.WriteString(k.Query)
	for _, a := range k.Args {
		fmt.Fprintf(&sb, "|%T=%v", a, a)
	}
	return sb.String()
}
