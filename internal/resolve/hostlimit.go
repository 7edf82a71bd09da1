package resolve

import (
	"context"
	"sync"
	"time"
)

// DefaultPerHostDelay spaces successive requests to the same host.
const DefaultPerHostDelay = 500 * time.Millisecond

// HostLimiter enforces a minimum delay between requests to the same
// host. Different hosts never wait on each other.
type HostLimiter struct {
	delay time.Duration

	mu   sync.Mutex
	next map[string]time.Time
}

func NewHostLimiter(delay time.Duration) *HostLimiter {
	if delay < 0 {
		delay = DefaultPerHostDelay
	}
	return &HostLimiter{
		delay: delay,
		next:  make(map[string]time.Time),
	}
}

// Wait blocks until the host's slot opens or ctx is done. The slot is
// reserved before sleeping, so concurrent callers for one host queue up
// rather than stampede.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || l.delay == 0 || host == "" {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	at := l.next[host]
	if at.Before(now) {
		at = now
	}
	l.next[host] = at.Add(l.delay)
	l.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
