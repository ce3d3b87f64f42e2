// Package ratelimit bounds aggregate call volume against a shared resource
// (the LLM / search budget) with a fixed-window counter in the shared
// key-value store. Fixed windows admit up to 2x the limit across a window
// boundary; that approximation is accepted in exchange for a single atomic
// counter per window.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jamesnation/deepsearch/config"
	"github.com/jamesnation/deepsearch/internal/kv"
)

// Result reports the state of the current window.
type Result struct {
	Allowed   bool
	Remaining int
	TotalHits int64
	ResetAt   time.Time
}

// Limiter is a fixed-window rate limiter over a kv.Store.
type Limiter struct {
	store  kv.Store
	cfg    config.RateLimitConfig
	logger *log.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter. A nil logger gets a prefixed default.
func New(store kv.Store, cfg config.RateLimitConfig, logger *log.Logger) *Limiter {
	if logger == nil {
		logger = log.New(log.Writer(), "[RATELIMIT] ", log.LstdFlags)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rate_limit"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Limiter{store: store, cfg: cfg, logger: logger, now: time.Now, sleep: sleepCtx}
}

// Check reads the current window counter without incrementing it.
// If the store is unreachable the limiter fails open: availability wins over
// strict limiting during an infrastructure outage.
func (l *Limiter) Check(ctx context.Context) Result {
	windowStart := l.windowStart()
	resetAt := windowStart.Add(l.cfg.Window)

	val, ok, err := l.store.Get(ctx, l.key(windowStart))
	if err != nil {
		l.logger.Printf("check failed, failing open: %v", err)
		return Result{Allowed: true, Remaining: l.cfg.MaxRequests - 1, ResetAt: resetAt}
	}

	var count int64
	if ok {
		if _, err := fmt.Sscanf(val, "%d", &count); err != nil {
			count = 0
		}
	}

	remaining := l.cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count < int64(l.cfg.MaxRequests),
		Remaining: remaining,
		TotalHits: count,
		ResetAt:   resetAt,
	}
}

// Record counts one request against the current window. The increment and the
// expiry refresh are a single atomic store operation.
func (l *Limiter) Record(ctx context.Context) {
	windowStart := l.windowStart()
	if _, err := l.store.IncrWithExpiry(ctx, l.key(windowStart), l.cfg.Window); err != nil {
		l.logger.Printf("record failed: %v", err)
	}
}

// Wait checks the limiter and, when the window is exhausted, sleeps until the
// window resets and re-checks, up to MaxRetries attempts. An explicit loop
// rather than recursion keeps the retry depth bounded. Returns false when the
// limit is still exceeded after all retries or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) bool {
	res := l.Check(ctx)
	for attempt := 0; !res.Allowed && attempt < l.cfg.MaxRetries; attempt++ {
		wait := res.ResetAt.Sub(l.now())
		if wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return false
			}
		}
		res = l.Check(ctx)
	}
	return res.Allowed
}

func (l *Limiter) windowStart() time.Time {
	return l.now().Truncate(l.cfg.Window)
}

func (l *Limiter) key(windowStart time.Time) string {
	return fmt.Sprintf("%s:%d", l.cfg.KeyPrefix, windowStart.UnixMilli())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
