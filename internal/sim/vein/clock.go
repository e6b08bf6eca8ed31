package vein

import (
	"context"
	"sync"
)

// StepWaiter suspends a goroutine-driven session between steps.
type StepWaiter interface {
	StepClock
	// WaitAfter blocks until the current step is greater than step.
	WaitAfter(ctx context.Context, step uint64) (uint64, error)
}

// Clock is a host-advanced step counter. Waiters are released once per
// Advance; there is no polling.
type Clock struct {
	mu   sync.Mutex
	step uint64
	wake chan struct{}
}

func NewClock(start uint64) *Clock {
	return &Clock{step: start, wake: make(chan struct{})}
}

func (c *Clock) CurrentStep() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Advance moves to the next step and wakes all waiters.
func (c *Clock) Advance() uint64 {
	c.mu.Lock()
	c.step++
	n := c.step
	close(c.wake)
	c.wake = make(chan struct{})
	c.mu.Unlock()
	return n
}

func (c *Clock) WaitAfter(ctx context.Context, step uint64) (uint64, error) {
	for {
		c.mu.Lock()
		cur, wake := c.step, c.wake
		c.mu.Unlock()
		if cur > step {
			return cur, nil
		}
		select {
		case <-ctx.Done():
			return cur, ctx.Err()
		case <-wake:
		}
	}
}
