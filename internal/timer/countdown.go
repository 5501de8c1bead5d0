// Package timer implements the cancelable per-question countdown.
package timer

import (
	"sync"
	"time"
)

// DefaultStep is the interval between countdown ticks.
const DefaultStep = time.Second

// Countdown arms countdowns that decrement once per Step.
type Countdown struct {
	Step time.Duration
}

// New returns a countdown with the given step. Non-positive steps fall back to DefaultStep.
func New(step time.Duration) *Countdown {
	if step <= 0 {
		step = DefaultStep
	}
	return &Countdown{Step: step}
}

// Handle controls one armed countdown.
type Handle struct {
	mu        sync.Mutex
	remaining int
	done      bool
	expired   bool
	stop      chan struct{}
}

// Arm starts a countdown of seconds steps. onTick receives the remaining steps
// after each decrement that does not reach zero; it runs while the handle is
// locked and must not call Cancel. onExpire runs once when the countdown hits
// zero. Either callback may be nil.
func (c *Countdown) Arm(seconds int, onTick func(remaining int), onExpire func()) *Handle {
	step := DefaultStep
	if c != nil && c.Step > 0 {
		step = c.Step
	}

	h := &Handle{remaining: seconds, stop: make(chan struct{})}
	go h.run(step, onTick, onExpire)
	return h
}

func (h *Handle) run(step time.Duration, onTick func(int), onExpire func()) {
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		h.mu.Lock()
		if h.done {
			h.mu.Unlock()
			return
		}

		if h.remaining > 0 {
			h.remaining--
		}

		if h.remaining > 0 {
			if onTick != nil {
				onTick(h.remaining)
			}
			h.mu.Unlock()
			continue
		}

		h.done = true
		h.expired = true
		h.mu.Unlock()

		if onExpire != nil {
			onExpire()
		}
		return
	}
}

// Cancel disarms the countdown. Once Cancel returns no callback of this handle
// will start. It reports whether the countdown was still running; false means
// it had already expired or been canceled.
func (h *Handle) Cancel() bool {
	if h == nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return false
	}

	h.done = true
	close(h.stop)
	return true
}

// Remaining returns the steps left on the countdown.
func (h *Handle) Remaining() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remaining
}

// Expired reports whether the countdown reached zero.
func (h *Handle) Expired() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.expired
}
