package services

import (
	"log/slog"
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by (short code, client).
// Allow reports the decision plus the remaining budget so the caller can
// choose between hard rejection and soft logging.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	window time.Duration
	budget int
	logger *slog.Logger
	now    func() time.Time
}

func NewRateLimiter(window time.Duration, budget int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		window: window,
		budget: budget,
		logger: logger,
		now:    time.Now,
	}
}

func (l *RateLimiter) Allow(shortCode, clientKey string) (bool, int) {
	key := shortCode + "|" + clientKey
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.budget {
		l.hits[key] = recent
		return false, 0
	}

	l.hits[key] = append(recent, now)
	return true, l.budget - len(l.hits[key])
}

func (l *RateLimiter) StartCleanup(interval time.Duration) {
	go func() {
		for {
			time.Sleep(interval)
			l.mu.Lock()
			if len(l.hits) > 10000 {
				l.logger.Info("Cleaning up rate limiter map", "count", len(l.hits))
				l.hits = make(map[string][]time.Time)
			}
			l.mu.Unlock()
		}
	}()
}
