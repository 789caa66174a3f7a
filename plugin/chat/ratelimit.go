package chat

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound messages per channel so a burst of session
// prompts cannot trip a platform's HTTP rate limit bucket.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter

	limit rate.Limit
	burst int
}

// NewRateLimiter creates a rate limiter allowing n messages per second per
// channel with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limits: make(map[string]*rate.Limiter),
		limit:  rate.Limit(perSecond),
		burst:  burst,
	}
}

func (rl *RateLimiter) getLimiter(channelID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[channelID]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limits[channelID] = limiter
	return limiter
}

// Allow reports whether a message may be sent right now.
func (rl *RateLimiter) Allow(channelID string) bool {
	return rl.getLimiter(channelID).Allow()
}

// Wait blocks until a message may be sent into the channel.
func (rl *RateLimiter) Wait(ctx context.Context, channelID string) error {
	return rl.getLimiter(channelID).Wait(ctx)
}

// Reserve returns the delay before the next message may be sent.
func (rl *RateLimiter) Reserve(channelID string) time.Duration {
	return rl.getLimiter(channelID).Reserve().Delay()
}
