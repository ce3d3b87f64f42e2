// Package kv abstracts the shared key-value store backing the rate limiter
// and the summarization cache. The rest of the system only needs three
// primitives: read, write with TTL, and an atomic increment-with-expiry.
package kv

import (
	"context"
	"time"
)

// Store is the contract both Redis and the in-memory store satisfy.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetWithTTL stores value under key, expiring after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// IncrWithExpiry atomically increments the counter at key and refreshes
	// its expiry to ttl, returning the new count. Increment and expire must
	// behave as one indivisible operation under concurrent access.
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
