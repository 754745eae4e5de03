package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"casework/internal/casefile"
)

// Cache stores extractor output keyed by document content. Implementations
// return found=false for missing or expired entries.
type Cache interface {
	Get(ctx context.Context, key string) (fields casefile.Fields, found bool, err error)
	Set(ctx context.Context, key string, fields casefile.Fields) error
}

// CacheKey derives the cache key for a document from its kind and bytes.
func CacheKey(kind casefile.Kind, data []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(data)
	return string(kind) + ":" + hex.EncodeToString(h.Sum(nil))
}
