// Package ratelimit implements the Rate Gate: a token-bucket limiter in
// front of every outbound upstream call, plus the exponential-backoff
// retry policy wrapped around it.
package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"leeksaver/internal/errkind"
)

// Gate token-buckets outbound calls at capacity C / refill rate R per
// second, grounded on golang.org/x/time/rate.NewLimiter the way
// ghostviper-tet-data-service gates its Binance client.
type Gate struct {
	limiter *rate.Limiter

	maxAttempts int
	base        time.Duration
	maxDelay    time.Duration
	callDeadline time.Duration
}

// Config holds the Rate Gate's tunables; zero values fall back to
// spec.md §4.2's defaults (C=5, R=5, M=3, base=1s, deadline=60s).
type Config struct {
	Capacity     int
	RefillPerSec int
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	CallDeadline time.Duration
}

// New builds a Gate from cfg, defaulting any zero field.
func New(cfg Config) *Gate {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 5
	}
	if cfg.RefillPerSec <= 0 {
		cfg.RefillPerSec = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.CallDeadline <= 0 {
		cfg.CallDeadline = 60 * time.Second
	}
	return &Gate{
		limiter:      rate.NewLimiter(rate.Limit(cfg.RefillPerSec), cfg.Capacity),
		maxAttempts:  cfg.MaxAttempts,
		base:         cfg.BaseDelay,
		maxDelay:     cfg.MaxDelay,
		callDeadline: cfg.CallDeadline,
	}
}

// Do acquires one token (suspending, FIFO, cooperative — rate.Limiter's
// Wait queues reservations internally) then invokes fn, retrying on
// RateLimited/UpstreamUnavailable/DeadlineExceeded per spec.md §4.2's
// backoff schedule. SchemaDrift, Empty, and Unknown are never retried.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.callDeadline)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return errkind.New(errkind.DeadlineExceeded, "ratelimit.Do", err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !errkind.Retryable(errkind.KindOf(err)) {
			return err
		}
		if attempt == g.maxAttempts-1 {
			break
		}

		delay := g.backoff(attempt)
		select {
		case <-ctx.Done():
			return errkind.New(errkind.DeadlineExceeded, "ratelimit.Do", ctx.Err())
		case <-time.After(delay):
		}
	}
	return lastErr
}

// backoff computes base*2^attempt + jitter(0,base), capped at maxDelay.
func (g *Gate) backoff(attempt int) time.Duration {
	d := g.base * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(g.base) + 1))
	d += jitter
	if d > g.maxDelay {
		d = g.maxDelay
	}
	return d
}
