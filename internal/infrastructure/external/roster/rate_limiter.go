package roster

import (
	"context"
	"math"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiterConfig tunes the client-side throttle.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate the bucket refills at.
	RequestsPerSecond float64

	// BurstSize is the bucket capacity.
	BurstSize int

	// MinInterval is a hard floor between consecutive requests, enforced
	// even while the bucket holds tokens.
	MinInterval time.Duration

	// WaitTimeout bounds how long Allow blocks for a token.
	WaitTimeout time.Duration

	// RetryAfter is the fallback pause after the source reports a quota
	// hit without a Retry-After of its own.
	RetryAfter time.Duration
}

// DefaultRateLimiterConfig returns conservative defaults for the roster
// source. Apps Script endpoints tolerate very little sustained traffic.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 2.0,
		BurstSize:         5,
		MinInterval:       200 * time.Millisecond,
		WaitTimeout:       30 * time.Second,
		RetryAfter:        60 * time.Second,
	}
}

// RateLimiter throttles outgoing roster requests with a token bucket.
// The source's quotas are opaque, so the limiter also backs off on its
// own when it keeps finding the bucket empty: each consecutive dry take
// doubles the suggested wait, and a reported quota hit drains the bucket
// and permanently slows the refill by 20%.
type RateLimiter struct {
	mu sync.Mutex

	capacity  float64
	perSecond float64
	minGap    time.Duration
	maxWait   time.Duration
	penalty   time.Duration

	tokens     float64
	refilledAt time.Time
	lastTake   time.Time
	dryStreak  int
}

// NewRateLimiter builds a limiter with a full bucket, ready to serve an
// immediate first request.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		capacity:   float64(config.BurstSize),
		perSecond:  config.RequestsPerSecond,
		minGap:     config.MinInterval,
		maxWait:    config.WaitTimeout,
		penalty:    config.RetryAfter,
		tokens:     float64(config.BurstSize),
		refilledAt: now,
		lastTake:   now.Add(-config.MinInterval),
	}
}

// RateLimitError reports a quota problem, either raised locally when the
// wait budget runs out or mapped from the source's own quota responses.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string { return e.Message }

// Allow blocks until a token is available, the context ends, or the
// configured wait budget is spent.
func (rl *RateLimiter) Allow(ctx context.Context) error {
	budget := time.Now().Add(rl.maxWait)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait, ok := rl.take()
		if ok {
			return nil
		}
		if time.Now().Add(wait).After(budget) {
			return &RateLimitError{
				RetryAfter: wait,
				Message:    "rate limit exceeded, retry after " + wait.String(),
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// WaitTime reports how long the next request would have to wait, without
// consuming anything. Zero means a token is ready now.
func (rl *RateLimiter) WaitTime() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if gap := rl.minGap - time.Since(rl.lastTake); gap > 0 {
		return gap
	}
	if rl.tokens >= 1.0 {
		return 0
	}
	return rl.untilNextToken()
}

// take consumes a token if one is available. On failure it returns the
// suggested wait, inflated by the doubling backoff while the bucket
// stays dry.
func (rl *RateLimiter) take() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if gap := rl.minGap - time.Since(rl.lastTake); gap > 0 {
		return gap, false
	}

	if rl.tokens < 1.0 {
		wait := rl.untilNextToken()
		if rl.dryStreak > 0 {
			wait *= time.Duration(1 << min(rl.dryStreak, 5))
		}
		rl.dryStreak++
		return wait, false
	}

	rl.tokens--
	rl.lastTake = time.Now()
	rl.dryStreak = 0
	return 0, true
}

// untilNextToken converts the token deficit into a duration at the
// current refill rate. Callers hold the lock.
func (rl *RateLimiter) untilNextToken() time.Duration {
	missing := 1.0 - rl.tokens
	return time.Duration(missing / rl.perSecond * float64(time.Second))
}

// refill credits tokens for the time elapsed since the last credit,
// capped at the bucket capacity. Callers hold the lock.
func (rl *RateLimiter) refill() {
	now := time.Now()
	if elapsed := now.Sub(rl.refilledAt).Seconds(); elapsed > 0 {
		rl.tokens = math.Min(rl.tokens+elapsed*rl.perSecond, rl.capacity)
		rl.refilledAt = now
	}
}

// RecordRateLimitHit reacts to a quota response from the source: the
// bucket drains, the refill rate drops by 20% and the dry-streak backoff
// advances, so the next attempts come in noticeably slower. The pause
// before the next take honors the source's Retry-After when it sent one,
// falling back to the configured RetryAfter otherwise.
func (rl *RateLimiter) RecordRateLimitHit(retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = rl.penalty
	}

	rl.tokens = 0
	rl.perSecond *= 0.8
	rl.dryStreak++
	// Push the interval floor out so the next take waits the full pause.
	rl.lastTake = time.Now().Add(retryAfter - rl.minGap)
}

// Reset restores a full bucket. The refill rate keeps any penalty from
// earlier quota hits until the limiter is rebuilt.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = rl.capacity
	rl.refilledAt = time.Now()
	rl.lastTake = time.Now().Add(-rl.minGap)
	rl.dryStreak = 0
}

// RateLimiterStatus is a point-in-time snapshot for status endpoints.
type RateLimiterStatus struct {
	AvailableTokens  float64
	MaxTokens        float64
	RefillRate       float64
	LastRefill       time.Time
	LastRequest      time.Time
	ConsecutiveWaits int
}

// Status snapshots the limiter after a refill pass.
func (rl *RateLimiter) Status() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	return RateLimiterStatus{
		AvailableTokens:  rl.tokens,
		MaxTokens:        rl.capacity,
		RefillRate:       rl.perSecond,
		LastRefill:       rl.refilledAt,
		LastRequest:      rl.lastTake,
		ConsecutiveWaits: rl.dryStreak,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BREAKER AND RETRY TUNING
// ══════════════════════════════════════════════════════════════════════════════

// CircuitBreakerConfig tunes the client's circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold   int
	SuccessThreshold   int
	Timeout            time.Duration
	HalfOpenMaxRetries int
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:   5,
		SuccessThreshold:   2,
		Timeout:            30 * time.Second,
		HalfOpenMaxRetries: 3,
	}
}

// RetryConfig tunes the per-request retry loop.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// Jitter spreads retries out by up to this fraction of the backoff.
	Jitter float64
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// CalculateBackoff returns the pause before the given retry attempt,
// exponential with a deterministic jitter so tests stay stable.
func (c RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.InitialBackoff
	}

	backoff := math.Min(
		float64(c.InitialBackoff)*math.Pow(c.BackoffMultiplier, float64(attempt)),
		float64(c.MaxBackoff),
	)

	if c.Jitter > 0 {
		spread := backoff * c.Jitter
		offset := spread * float64((attempt*37)%100) / 100.0
		backoff = backoff - spread/2 + offset
	}

	return time.Duration(backoff)
}
