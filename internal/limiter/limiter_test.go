package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock drives the limiter without real sleeping: sleep advances time.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	cancel time.Duration // sleeps of at least this length fail, 0 disables
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) install(l *RateLimiter) {
	l.now = func() time.Time { return c.now }
	l.sleep = func(ctx context.Context, d time.Duration) error {
		if c.cancel > 0 && d >= c.cancel {
			return context.Canceled
		}
		c.slept = append(c.slept, d)
		c.now = c.now.Add(d)
		return nil
	}
}

func TestAcquireSpacesRequestsWithinMinute(t *testing.T) {
	l := New(6, 0) // one slot every 10s
	clock := newFakeClock()
	clock.install(l)

	start := clock.now
	for i := 0; i < 4; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	// First request is immediate, the rest wait out the spacing delay.
	if elapsed := clock.now.Sub(start); elapsed != 30*time.Second {
		t.Errorf("elapsed = %v", elapsed)
	}
}

func TestAcquireBlocksWhenMinuteWindowFull(t *testing.T) {
	l := New(2, 0)
	clock := newFakeClock()
	clock.install(l)
	// Defeat spacing so the window itself is what fills.
	l.minDelay = 0

	for i := 0; i < 2; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	before := clock.now
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("third Acquire: %v", err)
	}
	if waited := clock.now.Sub(before); waited < time.Minute {
		t.Errorf("third request waited only %v", waited)
	}
}

func TestAcquireSuspendsOnDailyExhaustion(t *testing.T) {
	l := New(0, 3)
	clock := newFakeClock()
	clock.install(l)

	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	before := clock.now
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("fourth Acquire: %v", err)
	}
	if waited := clock.now.Sub(before); waited < 23*time.Hour {
		t.Errorf("daily exhaustion waited only %v", waited)
	}
}

func TestAcquireHonorsContextDuringWait(t *testing.T) {
	l := New(0, 1)
	clock := newFakeClock()
	clock.cancel = time.Hour
	clock.install(l)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := l.Acquire(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestAcquireNoQuotasIsFree(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	var nilLimiter *RateLimiter
	if err := nilLimiter.Acquire(context.Background()); err != nil {
		t.Fatalf("nil limiter: %v", err)
	}
}
