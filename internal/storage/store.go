package storage

import (
	"context"
	"strings"
)

// DefaultCacheControl is applied to every uploaded object. Keys are never
// rewritten, so objects can be cached indefinitely.
const DefaultCacheControl = "public, max-age=31536000, immutable"

// ObjectStore persists immutable media objects.
type ObjectStore interface {
	// Upload stores data under key and returns its public URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
