package http

import (
	"sync"
	"time"
)

type clientBucket struct {
	tokens   float64
	refilled time.Time
	lastSeen time.Time
}

// RateLimiter implements a token bucket per client key. Buckets idle for
// longer than the TTL are dropped by a background sweep until Stop is called.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*clientBucket
	capacity   float64
	refillRate float64
	ttl        time.Duration
	now        func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRateLimiter constructs a rate limiter allowing burst requests at once and
// refilling perSecond tokens every second.
func NewRateLimiter(burst int, perSecond float64, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*clientBucket),
		capacity:   float64(burst),
		refillRate: perSecond,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	if ttl > 0 {
		go rl.sweep(time.NewTicker(ttl))
	}

	return rl
}

// Allow consumes a token for key and reports whether the request may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets[key]
	if !ok {
		bucket = &clientBucket{tokens: rl.capacity, refilled: now}
		rl.buckets[key] = bucket
	}
	bucket.lastSeen = now

	if elapsed := now.Sub(bucket.refilled).Seconds(); elapsed > 0 {
		bucket.tokens = min(rl.capacity, bucket.tokens+elapsed*rl.refillRate)
		bucket.refilled = now
	}

	if bucket.tokens < 1 {
		return false
	}

	bucket.tokens--
	return true
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

func (rl *RateLimiter) sweep(ticker *time.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.pruneStale()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) pruneStale() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, bucket := range rl.buckets {
		if now.Sub(bucket.lastSeen) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
