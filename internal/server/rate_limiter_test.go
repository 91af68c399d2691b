package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	limiter := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(), "message %d should pass", i)
	}
	assert.False(t, limiter.Allow())
}

func TestRateLimiterRefills(t *testing.T) {
	limiter := newRateLimiter(1, 20*time.Millisecond)

	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
	assert.Eventually(t, limiter.Allow, time.Second, 5*time.Millisecond)
}

func TestRateLimiterClampsInvalidInput(t *testing.T) {
	limiter := newRateLimiter(0, 0)

	assert.Equal(t, 1, limiter.Burst())
	assert.True(t, limiter.Allow())
}
