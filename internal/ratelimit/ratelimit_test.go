package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jamesnation/deepsearch/config"
	"github.com/jamesnation/deepsearch/internal/kv"
)

func newTestLimiter(t *testing.T, maxRequests int, window time.Duration) (*Limiter, *time.Time) {
	t.Helper()
	now := time.UnixMilli(1_700_000_000_000)
	store := kv.NewMemory()
	store.SetClock(func() time.Time { return now })
	limiter := New(store, config.RateLimitConfig{
		Enabled:     true,
		MaxRequests: maxRequests,
		Window:      window,
		KeyPrefix:   "test_limit",
		MaxRetries:  3,
	}, nil)
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestWindowExhaustionAndReset(t *testing.T) {
	ctx := context.Background()
	limiter, now := newTestLimiter(t, 1, 5*time.Second)

	limiter.Record(ctx)
	limiter.Record(ctx)

	res := limiter.Check(ctx)
	if res.Allowed {
		t.Fatalf("expected window to be exhausted, got %+v", res)
	}
	if res.TotalHits != 2 {
		t.Fatalf("expected 2 hits, got %d", res.TotalHits)
	}

	// Cross the window boundary: a fresh window starts at zero.
	*now = now.Add(6 * time.Second)
	res = limiter.Check(ctx)
	if !res.Allowed {
		t.Fatalf("expected fresh window to allow, got %+v", res)
	}
	if res.TotalHits != 0 {
		t.Fatalf("expected hit count reset to 0, got %d", res.TotalHits)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 2, time.Minute)
	for i := 0; i < 5; i++ {
		limiter.Record(ctx)
	}
	res := limiter.Check(ctx)
	if res.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", res.Remaining)
	}
}

type downStore struct{}

func (downStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}
func (downStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("connection refused")
}
func (downStore) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestFailsOpenWhenStoreDown(t *testing.T) {
	limiter := New(downStore{}, config.RateLimitConfig{
		Enabled: true, MaxRequests: 1, Window: time.Second,
	}, nil)

	res := limiter.Check(context.Background())
	if !res.Allowed {
		t.Fatalf("limiter must fail open when the store is unreachable")
	}
	// Record must not panic or surface the store error either.
	limiter.Record(context.Background())
}

func TestWaitRetriesUntilWindowResets(t *testing.T) {
	ctx := context.Background()
	limiter, now := newTestLimiter(t, 1, 5*time.Second)

	limiter.Record(ctx)

	var slept []time.Duration
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		*now = now.Add(d) // sleeping advances the clock past the boundary
		return nil
	}

	if !limiter.Wait(ctx) {
		t.Fatalf("expected Wait to succeed after window reset")
	}
	if len(slept) != 1 {
		t.Fatalf("expected exactly one sleep, got %d", len(slept))
	}
	if slept[0] <= 0 || slept[0] > 5*time.Second {
		t.Fatalf("sleep should cover the remaining window, got %v", slept[0])
	}
}

func TestWaitGivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 1, 5*time.Second)
	limiter.Record(ctx)

	attempts := 0
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		attempts++
		return nil // clock never advances: window never resets
	}

	if limiter.Wait(ctx) {
		t.Fatalf("expected Wait to give up")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 bounded retries, got %d", attempts)
	}
}
