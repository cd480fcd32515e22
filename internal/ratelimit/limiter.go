// Package ratelimit provides a keyed token-bucket guard for hot operations.
package ratelimit

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited indicates acquisition timed out; callers surface it as a
// retryable "try again later" failure.
var ErrRateLimited = errors.New("ratelimit: acquisition timed out")

// DefaultMaxBuckets bounds the bucket table. Evicting an idle bucket is
// equivalent to that key never having been used.
const DefaultMaxBuckets = 4096

type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

type entry struct {
	key    string
	bucket *bucket
}

// Limiter maintains one token bucket per key. Bucket capacity equals the
// per-second rate, giving a one-second burst window; refill happens lazily on
// each access.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*list.Element
	order   *list.List // front = most recently used
	max     int

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New constructs a Limiter with the default bucket cap.
func New() *Limiter {
	return NewWithCapacity(DefaultMaxBuckets)
}

// NewWithCapacity constructs a Limiter evicting least recently used buckets
// beyond max keys.
func NewWithCapacity(max int) *Limiter {
	if max <= 0 {
		max = DefaultMaxBuckets
	}
	return &Limiter{
		buckets: make(map[string]*list.Element),
		order:   list.New(),
		max:     max,
		now:     time.Now,
		after:   func(d time.Duration) <-chan time.Time { return time.After(d) },
	}
}

// Acquire takes one token from the bucket for key, refilling it at
// ratePerSecond. When no token is available it waits cooperatively until one
// accrues, the context is canceled, or waitTimeout elapses; the latter yields
// ErrRateLimited.
func (l *Limiter) Acquire(ctx context.Context, key string, ratePerSecond float64, waitTimeout time.Duration) error {
	if ratePerSecond <= 0 {
		return ErrRateLimited
	}
	deadline := l.now().Add(waitTimeout)

	for {
		b := l.bucketFor(key)
		wait, ok := b.take(l.now(), ratePerSecond)
		if ok {
			return nil
		}

		remaining := deadline.Sub(l.now())
		if remaining <= 0 {
			return ErrRateLimited
		}
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.after(wait):
		}
	}
}

// take refills the bucket and consumes a token when available. When empty it
// returns how long until the next token accrues.
func (b *bucket) take(now time.Time, rate float64) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Capacity equals the rate (a one-second burst window), but fractional
	// rates must still be able to accrue one whole token.
	capacity := rate
	if capacity < 1 {
		capacity = 1
	}

	if b.last.IsZero() {
		// Fresh bucket starts full.
		b.tokens = capacity
	} else if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * rate
		if b.tokens > capacity {
			b.tokens = capacity
		}
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	wait := time.Duration((1 - b.tokens) / rate * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

func (l *Limiter) bucketFor(key string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.buckets[key]; ok {
		l.order.MoveToFront(elem)
		return elem.Value.(*entry).bucket
	}

	b := &bucket{}
	l.buckets[key] = l.order.PushFront(&entry{key: key, bucket: b})
	for len(l.buckets) > l.max {
		oldest := l.order.Back()
		if oldest == nil {
			break
		}
		l.order.Remove(oldest)
		delete(l.buckets, oldest.Value.(*entry).key)
	}
	return b
}

// Len reports the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
