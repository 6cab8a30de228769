// Package limiter bounds the outbound request rate to one class of remote
// generation service. One limiter is shared by reference across every
// concurrent task that calls that service.
package limiter

import (
	"context"
	"sync"
	"time"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// RateLimiter enforces independent requests-per-minute and requests-per-day
// quotas with sliding windows. Acquire suspends the caller until a slot is
// free; it never fails except on context cancellation. A zero quota disables
// that window. Exhausting the daily quota suspends until the window rolls
// rather than erroring — the daily cap is a cost control, and a pipeline that
// hits it should stall, not die.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	perDay    int
	minDelay  time.Duration
	times     []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(perMinute, perDay int) *RateLimiter {
	l := &RateLimiter{
		perMinute: perMinute,
		perDay:    perDay,
		now:       time.Now,
		sleep:     sleepFor,
	}
	if perMinute > 0 {
		// Space consecutive requests out instead of bursting a full minute's
		// quota at the window edge.
		l.minDelay = minuteWindow / time.Duration(perMinute)
	}
	return l
}

// Acquire blocks until a request slot is available under both quotas, then
// records the request. The only error it returns is ctx.Err().
func (l *RateLimiter) Acquire(ctx context.Context) error {
	if l == nil || (l.perMinute <= 0 && l.perDay <= 0) {
		return nil
	}
	for {
		wait := l.tryReserve()
		if wait <= 0 {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryReserve records the request and returns 0 if a slot is free now, or the
// time to wait before checking again.
func (l *RateLimiter) tryReserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.trim(now)

	if l.perDay > 0 {
		if inWindow := l.countSince(now.Add(-dayWindow)); inWindow >= l.perDay {
			return l.oldestSince(now.Add(-dayWindow)).Add(dayWindow).Sub(now)
		}
	}
	if l.perMinute > 0 {
		if inWindow := l.countSince(now.Add(-minuteWindow)); inWindow >= l.perMinute {
			return l.oldestSince(now.Add(-minuteWindow)).Add(minuteWindow).Sub(now)
		}
		if l.minDelay > 0 && len(l.times) > 0 {
			if since := now.Sub(l.times[len(l.times)-1]); since < l.minDelay {
				return l.minDelay - since
			}
		}
	}

	l.times = append(l.times, now)
	return 0
}

// trim drops timestamps older than the widest active window.
func (l *RateLimiter) trim(now time.Time) {
	keep := minuteWindow
	if l.perDay > 0 {
		keep = dayWindow
	}
	cutoff := now.Add(-keep)
	i := 0
	for i < len(l.times) && !l.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.times = append(l.times[:0], l.times[i:]...)
	}
}

func (l *RateLimiter) countSince(cutoff time.Time) int {
	n := 0
	for _, t := range l.times {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

func (l *RateLimiter) oldestSince(cutoff time.Time) time.Time {
	for _, t := range l.times {
		if t.After(cutoff) {
			return t
		}
	}
	return cutoff
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
