package ratelimiter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every request to one host.
type RateLimiter struct {
	limiter *rate.Limiter
	burst   int
	rps     int
}

// New returns a limiter allowing rps requests per second with the given
// burst. rps <= 0 disables limiting.
func New(rps int, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		burst:   burst,
		rps:     rps,
	}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

func (rl *RateLimiter) TryAcquire() bool {
	return rl.limiter.Allow()
}

// Stats returns the approximate number of free tokens and the bucket size.
func (rl *RateLimiter) Stats() (available, capacity int) {
	available = int(rl.limiter.Tokens())
	if available < 0 {
		available = 0
	}
	return available, rl.burst
}

var (
	sharedMu sync.Mutex
	shared   = map[string]*RateLimiter{}
)

// Shared returns the process-wide limiter for host, creating it on first use.
// Crawlers of different kinds hitting the same API share one budget.
func Shared(host string, rps int, burst int) *RateLimiter {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	key := fmt.Sprintf("%s_%d_%d", host, rps, burst)
	if l, ok := shared[key]; ok {
		return l
	}
	l := New(rps, burst)
	shared[key] = l
	return l
}
