package vein

import (
	"testing"
	"time"
)

func TestTimerState_Transitions(t *testing.T) {
	t0 := time.Unix(100, 0)
	var s TimerState

	s = s.Activate(1, t0)
	s = s.Poll(t0.Add(2 * time.Millisecond))
	if s.Spent != 2*time.Millisecond || !s.Active {
		t.Fatalf("after poll: %+v", s)
	}
	s = s.Deactivate(t0.Add(3 * time.Millisecond))
	if s.Spent != 3*time.Millisecond || s.Active {
		t.Fatalf("after deactivate: %+v", s)
	}

	// Idle time between spans is not counted.
	s = s.Activate(1, t0.Add(50*time.Millisecond))
	s = s.Deactivate(t0.Add(51 * time.Millisecond))
	if s.Spent != 4*time.Millisecond {
		t.Fatalf("idle time leaked: spent=%v", s.Spent)
	}

	// Polling while inactive adds nothing.
	s = s.Poll(t0.Add(time.Second))
	if s.Spent != 4*time.Millisecond {
		t.Fatalf("inactive poll leaked: spent=%v", s.Spent)
	}

	// A new step starts from zero.
	s = s.Activate(2, t0.Add(2*time.Second))
	if s.Spent != 0 || s.Step != 2 {
		t.Fatalf("step change did not reset: %+v", s)
	}
}

func TestTimerState_ReactivateFlushes(t *testing.T) {
	t0 := time.Unix(100, 0)
	s := TimerState{}.Activate(7, t0)
	s = s.Activate(7, t0.Add(time.Millisecond))
	if !s.Active || s.Spent != time.Millisecond {
		t.Fatalf("re-entry should flush the open span: %+v", s)
	}
}

func TestTimerState_FirstStepZero(t *testing.T) {
	// Step 0 is a real step id, not "unset".
	s := TimerState{Spent: time.Second}.Activate(0, time.Unix(1, 0))
	if s.Spent != 0 || !s.HasStep {
		t.Fatalf("first observed step must start at zero: %+v", s)
	}
}

func TestTickTimer_OverBudget(t *testing.T) {
	now := newFakeNow()
	steps := &stepCounter{n: 1}
	tm := NewTickTimer(6*time.Millisecond, steps, now.Now)

	tm.Activate()
	now.Add(4 * time.Millisecond)
	if tm.OverBudget() {
		t.Fatalf("4ms should be under a 6ms budget")
	}
	now.Add(2 * time.Millisecond)
	if tm.OverBudget() {
		t.Fatalf("exactly 6ms is not over budget")
	}
	now.Add(time.Millisecond)
	if !tm.OverBudget() {
		t.Fatalf("7ms should be over budget")
	}
	tm.Deactivate()

	steps.n++
	tm.Activate()
	if tm.OverBudget() {
		t.Fatalf("new step should reset the accumulator")
	}
	if tm.State().Step != 2 {
		t.Fatalf("step=%d want 2", tm.State().Step)
	}
}

func TestTickTimer_DefaultBudget(t *testing.T) {
	tm := NewTickTimer(0, &stepCounter{}, nil)
	if tm.Budget() != DefaultStepBudget {
		t.Fatalf("budget=%v want %v", tm.Budget(), DefaultStepBudget)
	}
}
