package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically: sleeping advances time.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	nap []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.nap = append(c.nap, d)
	return nil
}

func newTestLimiter(maxCalls int, window time.Duration) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := New(maxCalls, window)
	l.now = clock.now
	l.sleep = clock.sleep
	return l, clock
}

func TestAdmitBelowLimitNeverSleeps(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Admit(ctx); err != nil {
			t.Fatalf("Admit() error = %v", err)
		}
		clock.advance(time.Second)
	}
	if len(clock.nap) != 0 {
		t.Fatalf("expected no sleeps, got %v", clock.nap)
	}
	if got := l.InWindow(); got != 3 {
		t.Fatalf("InWindow() = %d, want 3", got)
	}
}

func TestAdmitBlocksWhenWindowFull(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)
	ctx := context.Background()

	if err := l.Admit(ctx); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	clock.advance(10 * time.Second)
	if err := l.Admit(ctx); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	clock.advance(5 * time.Second)

	// Third call: oldest timestamp is 15s old, so it must wait 45s.
	if err := l.Admit(ctx); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if len(clock.nap) != 1 {
		t.Fatalf("expected one sleep, got %d", len(clock.nap))
	}
	if clock.nap[0] != 45*time.Second {
		t.Fatalf("slept %v, want 45s", clock.nap[0])
	}
}

func TestWindowNeverExceedsMaxCalls(t *testing.T) {
	const maxCalls = 5
	window := time.Minute
	l, clock := newTestLimiter(maxCalls, window)
	ctx := context.Background()

	var admitted []time.Time
	for i := 0; i < 25; i++ {
		if err := l.Admit(ctx); err != nil {
			t.Fatalf("Admit() error = %v", err)
		}
		admitted = append(admitted, clock.now())
		clock.advance(time.Second)
	}

	// Verify the invariant over every trailing window.
	for i := range admitted {
		count := 0
		for j := range admitted {
			d := admitted[i].Sub(admitted[j])
			if d >= 0 && d < window {
				count++
			}
		}
		if count > maxCalls {
			t.Fatalf("window ending at %v holds %d calls, want <= %d",
				admitted[i], count, maxCalls)
		}
	}
}

func TestAdmitHonorsContextCancellation(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)
	l.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	ctx := context.Background()

	if err := l.Admit(ctx); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	clock.advance(time.Second)
	if err := l.Admit(ctx); err != context.Canceled {
		t.Fatalf("Admit() error = %v, want context.Canceled", err)
	}
}

func TestConcurrentAdmission(t *testing.T) {
	l := New(100, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Admit(ctx); err != nil {
				t.Errorf("Admit() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := l.InWindow(); got != 50 {
		t.Fatalf("InWindow() = %d, want 50", got)
	}
}
