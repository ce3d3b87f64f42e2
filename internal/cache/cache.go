// Package cache memoizes expensive operations (summarization) in the shared
// key-value store. Keys are derived from a stable hash over the operation
// name and its canonically serialized arguments, so semantically identical
// calls always hit the same entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jamesnation/deepsearch/internal/kv"
)

// Cache wraps a kv.Store with get-or-compute semantics.
type Cache struct {
	store  kv.Store
	logger *log.Logger
}

// New creates a cache. A nil logger gets a prefixed default.
func New(store kv.Store, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	return &Cache{store: store, logger: logger}
}

// Key derives the deterministic cache key for an operation and its arguments.
// Arguments are serialized as a JSON array, which is canonical for the
// ordered string arguments used here.
func Key(op string, args ...string) string {
	payload, _ := json.Marshal(args)
	sum := sha256.Sum256(append([]byte(op+":"), payload...))
	return fmt.Sprintf("%s:%s", op, hex.EncodeToString(sum[:]))
}

// GetOrCompute returns the cached value for key, or invokes compute, stores
// the result with ttl, and returns it. Store failures on read or write never
// fail the call: the cache degrades to plain computation. Concurrent misses
// for the same key may compute redundantly; last write wins, which is fine
// because compute is deterministic enough for our use.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (string, error)) (string, error) {
	if c == nil || c.store == nil {
		return compute(ctx)
	}

	if val, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Printf("read failed for %s, computing: %v", key, err)
	} else if ok {
		return val, nil
	}

	val, err := compute(ctx)
	if err != nil {
		return "", err
	}

	if err := c.store.SetWithTTL(ctx, key, val, ttl); err != nil {
		c.logger.Printf("write failed for %s: %v", key, err)
	}
	return val, nil
}
