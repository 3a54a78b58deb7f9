// Package ratelimit provides sliding-window admission control for calls to
// the remote extraction engine.
//
// The window is a FIFO of timestamps for recently admitted calls. Admission
// is fully serialized: the limiter holds its lock across any required sleep,
// so concurrent workers are admitted strictly one at a time and no window of
// the configured duration ever contains more than the allowed number of
// calls. Only admitted attempts are recorded; a call that is admitted and
// later rejected upstream (HTTP 429) does not count twice.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pjojoa/DocuMarval/internal/logger"
)

// Limiter bounds calls to at most maxCalls per trailing window.
type Limiter struct {
	maxCalls int
	window   time.Duration

	mu    sync.Mutex
	calls []time.Time

	// now and sleep are indirected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	log zerolog.Logger
}

// New creates a limiter admitting at most maxCalls per window.
func New(maxCalls int, window time.Duration) *Limiter {
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
		sleep:    sleepCtx,
		log:      logger.WithComponent("ratelimit"),
	}
}

// Admit blocks until the caller may proceed, then records the call. It
// returns early with the context's error if ctx is canceled while waiting.
func (l *Limiter) Admit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	if len(l.calls) >= l.maxCalls {
		wait := l.window - now.Sub(l.calls[0])
		if wait > 0 {
			l.log.Debug().
				Dur("wait", wait).
				Int("in_window", len(l.calls)).
				Msg("Rate limit reached, waiting")
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
		l.evict(l.now())
	}

	l.calls = append(l.calls, l.now())
	return nil
}

// InWindow reports how many admitted calls currently fall inside the window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.calls)
}

// evict drops timestamps older than the trailing window. Caller holds mu.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && l.calls[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
