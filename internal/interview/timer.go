package interview

import (
	"context"
	"time"
)

const warningMessage = "Less than 1 minute remaining..."

// deadline is the session countdown. Only the session loop mutates it; the
// ticker goroutine merely reports that a tick elapsed.
type deadline struct {
	remaining time.Duration
	tick      time.Duration
	warning   time.Duration
}

// step consumes one tick and reports what to emit. remaining never goes
// below zero.
func (d *deadline) step() (remainingSeconds int, warn, expired bool) {
	d.remaining -= d.tick
	if d.remaining < 0 {
		d.remaining = 0
	}
	warn = d.remaining > 0 && d.remaining < d.warning && d.remaining >= d.warning-d.tick
	return int(d.remaining / time.Second), warn, d.remaining <= 0
}

// remainingFrom seeds the countdown from the session's start time.
func remainingFrom(budget time.Duration, startedAt, now time.Time) time.Duration {
	r := budget - now.Sub(startedAt)
	if r < 0 {
		return 0
	}
	return r
}

type tickMsg struct{ id uint64 }

func (tickMsg) loopMsg() {}

// runTicker posts a tickMsg every interval until ctx is cancelled.
func runTicker(ctx context.Context, id uint64, interval time.Duration, post func(context.Context, loopMsg) bool) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !post(ctx, tickMsg{id: id}) {
				return
			}
		}
	}
}
