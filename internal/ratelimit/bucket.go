// Package ratelimit provides the single process-wide rate limiter the
// Classification Oracle Client blocks on before every HTTPS call: a
// sliding request-timestamp window bounding requests per minute,
// combined with a minimum-interval gate between individual calls. Every
// worker goroutine shares the same bucket instance rather than each
// holding its own.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a process-wide, goroutine-safe rate limiter combining a
// sliding-window requests-per-minute cap (R) with a minimum inter-request
// gap (G). Every Chunk Worker's Oracle call contends on the same Bucket
// instance; this is the one piece of shared mutable state in the hot
// path besides the connection pool.
type Bucket struct {
	mu           sync.Mutex
	rpm          int           // R, requests/minute; <=0 means unlimited
	minInterval  time.Duration // G
	requests     []time.Time   // sliding window of granted timestamps
	lastGranted  time.Time
}

// New builds a Bucket with the given requests-per-minute ceiling and
// minimum gap between requests.
func New(rpm int, minInterval time.Duration) *Bucket {
	return &Bucket{
		rpm:         rpm,
		minInterval: minInterval,
		requests:    make([]time.Time, 0),
	}
}

// Wait blocks the caller until both the RPM ceiling and the minimum
// interval permit another request, or ctx is cancelled. It is safe to
// call concurrently; callers serialize through the internal mutex only
// for the brief bookkeeping window, not for the whole wait.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		wait, ok := b.reserve()
		if ok {
			return nil
		}
		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve checks both constraints under the lock. If granted, it
// records the request and returns (0, true). Otherwise it returns how
// long the caller should sleep before retrying.
func (b *Bucket) reserve() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	if b.minInterval > 0 {
		sinceLast := now.Sub(b.lastGranted)
		if !b.lastGranted.IsZero() && sinceLast < b.minInterval {
			return b.minInterval - sinceLast, false
		}
	}

	if b.rpm > 0 {
		cutoff := now.Add(-time.Minute)
		kept := b.requests[:0]
		for _, ts := range b.requests {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		b.requests = kept

		if len(b.requests) >= b.rpm {
			oldest := b.requests[0]
			return oldest.Add(time.Minute).Sub(now), false
		}
	}

	b.lastGranted = now
	if b.rpm > 0 {
		b.requests = append(b.requests, now)
	}
	return 0, true
}

// CurrentRPM reports how many requests have been granted within the
// trailing 60-second window, for metrics/observability.
func (b *Bucket) CurrentRPM() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now().Add(-time.Minute)
	count := 0
	for _, ts := range b.requests {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}
