// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// bucketIdle is how long an unused per-client bucket is kept.
const bucketIdle = time.Minute

type bucket struct {
	*rate.Limiter
	seen time.Time
}

// RateLimiter keeps a token bucket per client address.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket

	quit chan struct{}
	once sync.Once
	done chan struct{}
}

// NewRateLimiter allows perSecond requests per client with the given burst.
// A janitor goroutine evicts idle buckets until Stop.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   max(burst, 1),
		buckets: make(map[string]*bucket),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go rl.janitor(bucketIdle)
	return rl
}

// Allow takes a token from ip's bucket if one is available.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.bucketFor(ip).Allow()
}

// Remaining is the whole number of tokens left for ip.
func (rl *RateLimiter) Remaining(ip string) int {
	return max(int(rl.bucketFor(ip).Tokens()), 0)
}

func (rl *RateLimiter) bucketFor(ip string) *bucket {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.buckets[ip]
	if b == nil {
		b = &bucket{Limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.seen = now
	return b
}

func (rl *RateLimiter) evictIdle(now time.Time, idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if now.Sub(b.seen) > idle {
			delete(rl.buckets, ip)
		}
	}
}

func (rl *RateLimiter) janitor(idle time.Duration) {
	defer close(rl.done)
	tick := time.NewTicker(idle)
	defer tick.Stop()

	for {
		select {
		case <-rl.quit:
			return
		case now := <-tick.C:
			rl.evictIdle(now, idle)
		}
	}
}

// Stop ends the janitor and waits for it. Safe to call twice.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.quit) })
	<-rl.done
}

// RateLimitMiddleware rejects over-limit clients with 429 and reports the
// bucket in X-RateLimit-* headers.
func RateLimitMiddleware(rl *RateLimiter, logger *zap.Logger) Middleware {
	limit := strconv.Itoa(rl.burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := GetClientIP(r)
			w.Header().Set("X-RateLimit-Limit", limit)

			if !rl.Allow(ip) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				logger.Warn("RATE_LIMIT_EXCEEDED", zap.String("ip", ip), zap.String("path", r.URL.Path))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(ip)))
			next.ServeHTTP(w, r)
		})
	}
}
