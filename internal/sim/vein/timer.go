package vein

import "time"

// TimerState accumulates wall-clock time spent while active within one
// discrete step. Transitions are pure: each returns the next state.
type TimerState struct {
	Step    uint64
	HasStep bool
	Spent   time.Duration
	Mark    time.Time
	Active  bool
}

// Activate starts an active span at now. Re-activating flushes the open span
// first. Observing a different step resets Spent.
func (s TimerState) Activate(step uint64, now time.Time) TimerState {
	if s.Active {
		s = s.Deactivate(now)
	}
	if !s.HasStep || s.Step != step {
		s.Step = step
		s.HasStep = true
		s.Spent = 0
	}
	s.Active = true
	s.Mark = now
	return s
}

func (s TimerState) Deactivate(now time.Time) TimerState {
	if s.Active {
		s.Spent += since(s.Mark, now)
	}
	s.Active = false
	return s
}

// Poll folds the open span into Spent without ending it.
func (s TimerState) Poll(now time.Time) TimerState {
	if s.Active {
		s.Spent += since(s.Mark, now)
		s.Mark = now
	}
	return s
}

func since(mark, now time.Time) time.Duration {
	if d := now.Sub(mark); d > 0 {
		return d
	}
	return 0
}

// StepClock exposes the host's discrete step counter.
type StepClock interface {
	CurrentStep() uint64
}

// StepFunc adapts a function to StepClock.
type StepFunc func() uint64

func (f StepFunc) CurrentStep() uint64 { return f() }

// TickTimer tracks the per-step budget against a StepClock.
type TickTimer struct {
	budget time.Duration
	clock  StepClock
	now    func() time.Time
	state  TimerState
}

const DefaultStepBudget = 6 * time.Millisecond

// NewTickTimer returns a timer with the given budget. now may be nil.
func NewTickTimer(budget time.Duration, clock StepClock, now func() time.Time) *TickTimer {
	if budget <= 0 {
		budget = DefaultStepBudget
	}
	if now == nil {
		now = time.Now
	}
	return &TickTimer{budget: budget, clock: clock, now: now}
}

func (t *TickTimer) Activate() {
	t.state = t.state.Activate(t.clock.CurrentStep(), t.now())
}

func (t *TickTimer) Deactivate() {
	t.state = t.state.Deactivate(t.now())
}

// OverBudget reports whether active time in the current step exceeds the
// budget. It may be polled repeatedly within one active span.
func (t *TickTimer) OverBudget() bool {
	t.state = t.state.Poll(t.now())
	return t.state.Spent > t.budget
}

func (t *TickTimer) Budget() time.Duration { return t.budget }
func (t *TickTimer) State() TimerState     { return t.state }
