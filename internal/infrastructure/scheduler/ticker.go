package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"

	"StoryStream/internal/ports"
)

// ClockTicker fires a job every interval on the supplied clock.
type ClockTicker struct {
	clock      clock.Clock
	interval   time.Duration
	runOnStart bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ ports.Ticker = (*ClockTicker)(nil)

// NewClockTicker builds a ticker. A nil clock means wall time.
func NewClockTicker(clk clock.Clock, interval time.Duration, runOnStart bool) *ClockTicker {
	if clk == nil {
		clk = clock.WallClock
	}
	return &ClockTicker{clock: clk, interval: interval, runOnStart: runOnStart}
}

// Start launches the tick loop. Jobs run one at a time on the loop goroutine,
// so a slow job delays the next tick instead of overlapping it.
func (c *ClockTicker) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if c.interval <= 0 {
		return fmt.Errorf("ticker interval must be positive, got %s", c.interval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.loop(loopCtx, job, c.done)
	return nil
}

func (c *ClockTicker) loop(ctx context.Context, job func(time.Time), done chan struct{}) {
	defer close(done)

	if c.runOnStart {
		job(c.clock.Now())
	}
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-c.clock.After(c.interval):
			if ctx.Err() != nil {
				return
			}
			job(t)
		}
	}
}

// Stop cancels the loop and waits for an in-flight job to return, or for ctx to expire.
func (c *ClockTicker) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop ticker: %w", ctx.Err())
	}
}
