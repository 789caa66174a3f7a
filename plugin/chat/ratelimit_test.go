package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	assert.True(t, rl.Allow("c1"))
	assert.True(t, rl.Allow("c1"))
	assert.False(t, rl.Allow("c1"))

	// Channels have independent buckets.
	assert.True(t, rl.Allow("c2"))
}

func TestRateLimiterReserveDelay(t *testing.T) {
	rl := NewRateLimiter(10, 1)

	assert.Zero(t, rl.Reserve("c1"))
	assert.Greater(t, rl.Reserve("c1").Seconds(), 0.0)
}
