package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("llm: circuit open")

// Breaker is a three-state circuit breaker. After threshold consecutive
// failures it opens for cooldown; the first call after cooldown probes the
// backend (half-open) and either closes the circuit or re-opens it.
type Breaker struct {
	inner     Client
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

// NewBreaker wraps inner. A threshold of 0 disables the breaker.
func NewBreaker(inner Client, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{inner: inner, threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (b *Breaker) Complete(ctx context.Context, msgs []Message, temperature float32) (string, error) {
	if b.threshold <= 0 {
		return b.inner.Complete(ctx, msgs, temperature)
	}
	b.mu.Lock()
	if b.open {
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return "", ErrCircuitOpen
		}
		// Half-open: let this call probe the backend.
		b.open = false
		b.failures = b.threshold - 1
	}
	b.mu.Unlock()

	out, err := b.inner.Complete(ctx, msgs, temperature)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.threshold {
			b.open = true
			b.openedAt = b.now()
		}
		return "", err
	}
	b.failures = 0
	return out, nil
}

// RateLimited throttles calls with a token bucket refilled at rps.
type RateLimited struct {
	inner Client

	mu     sync.Mutex
	tokens float64
	burst  float64
	rps    float64
	last   time.Time
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRateLimited wraps inner at rps calls per second with the given burst.
// rps <= 0 disables limiting.
func NewRateLimited(inner Client, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:  inner,
		tokens: float64(burst),
		burst:  float64(burst),
		rps:    rps,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *RateLimited) Complete(ctx context.Context, msgs []Message, temperature float32) (string, error) {
	if r.rps > 0 {
		if err := r.take(ctx); err != nil {
			return "", err
		}
	}
	return r.inner.Complete(ctx, msgs, temperature)
}

func (r *RateLimited) take(ctx context.Context) error {
	r.mu.Lock()
	now := r.now()
	if !r.last.IsZero() {
		r.tokens += now.Sub(r.last).Seconds() * r.rps
		if r.tokens > r.burst {
			r.tokens = r.burst
		}
	}
	r.last = now
	if r.tokens >= 1 {
		r.tokens--
		r.mu.Unlock()
		return nil
	}
	wait := time.Duration((1 - r.tokens) / r.rps * float64(time.Second))
	r.tokens--
	r.mu.Unlock()
	return r.sleep(ctx, wait)
}
