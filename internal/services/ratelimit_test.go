package services

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 3, slog.Default())

	allowed, remaining := limiter.Allow("abc123", "1.2.3.4")
	assert.True(t, allowed)
	assert.Equal(t, 2, remaining)

	allowed, remaining = limiter.Allow("abc123", "1.2.3.4")
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)

	allowed, remaining = limiter.Allow("abc123", "1.2.3.4")
	assert.True(t, allowed)
	assert.Equal(t, 0, remaining)

	allowed, remaining = limiter.Allow("abc123", "1.2.3.4")
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 1, slog.Default())

	allowed, _ := limiter.Allow("abc123", "1.2.3.4")
	assert.True(t, allowed)

	allowed, _ = limiter.Allow("abc123", "1.2.3.4")
	assert.False(t, allowed)

	// Different client, same code
	allowed, _ = limiter.Allow("abc123", "5.6.7.8")
	assert.True(t, allowed)

	// Same client, different code
	allowed, _ = limiter.Allow("xyz789", "1.2.3.4")
	assert.True(t, allowed)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 2, slog.Default())

	current := time.Now()
	limiter.now = func() time.Time { return current }

	allowed, _ := limiter.Allow("abc123", "1.2.3.4")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("abc123", "1.2.3.4")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("abc123", "1.2.3.4")
	assert.False(t, allowed)

	// Advance past the window; budget is restored
	current = current.Add(61 * time.Second)
	allowed, remaining := limiter.Allow("abc123", "1.2.3.4")
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
}

func TestRateLimiter_StartCleanup(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 1, slog.Default())

	for i := 0; i < 10001; i++ {
		limiter.Allow(fmt.Sprintf("code-%d", i), "1.2.3.4")
	}

	limiter.mu.Lock()
	assert.Equal(t, 10001, len(limiter.hits))
	limiter.mu.Unlock()

	limiter.StartCleanup(10 * time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 0, len(limiter.hits))
}
