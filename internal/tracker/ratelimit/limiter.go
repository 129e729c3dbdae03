// Package ratelimit spaces requests to tracker hosts.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Limiter enforces a minimum interval between requests to the same
// host. The interval is per host, not per call site, so concurrent
// resolutions against one tracker share a single budget.
type Limiter struct {
	interval time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	next map[string]time.Time
}

// NewLimiter creates a limiter with the given minimum inter-request
// interval. A non-positive interval disables limiting.
func NewLimiter(interval time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{
		interval: interval,
		logger:   logger.With().Str("component", "rate-limiter").Logger(),
		next:     make(map[string]time.Time),
	}
}

// Wait blocks until a request to the host is allowed, or until the
// context is canceled. The next slot is reserved before sleeping, so
// concurrent waiters queue up rather than stampede.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	at, exists := l.next[host]
	if !exists || at.Before(now) {
		at = now
	}
	l.next[host] = at.Add(l.interval)
	l.mu.Unlock()

	delay := time.Until(at)
	if delay <= 0 {
		return nil
	}

	l.logger.Debug().
		Str("host", host).
		Dur("delay", delay).
		Msg("Waiting for request slot")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears the recorded state for a host.
func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.next, host)
}
