package vein

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"veinmine.ai/internal/protocol"
)

type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
)

// Outcome is the terminal result of a run. Interrupted runs carry a reason
// code; Err is set only for failures other than ErrToolUnavailable.
type Outcome struct {
	Status    Status
	Reason    string
	Err       error
	Processed int64
	Destroyed int64
	Steps     int
	EndStep   uint64
}

func (o Outcome) Interrupted() bool { return o.Status == StatusInterrupted }

type RunInfo struct {
	ID        string
	ActorID   string
	Seed      Vec3i
	StartStep uint64
}

type StartRequest struct {
	// ID is generated when empty.
	ID      string
	Seed    Vec3i
	Match   Matcher
	Grid    Grid
	Destroy DestroyFunc
	Actor   Actor
	Tool    Tool

	Observer Observer
}

// Validate reports a request the runner would refuse.
func (r StartRequest) Validate() error {
	switch {
	case r.Match == nil:
		return errors.New("vein: missing matcher")
	case r.Grid == nil:
		return errors.New("vein: missing grid")
	case r.Destroy == nil:
		return errors.New("vein: missing destroy func")
	case r.Actor == nil:
		return errors.New("vein: missing actor")
	}
	return nil
}

// Session is one vein-mining run. It is driven by a single goroutine at a
// time, either through Step or Run.
type Session struct {
	info  RunInfo
	clock StepClock
	trav  *Traversal
	pipe  *Pipeline
	exec  *Executor
	obs   Observer

	steps    int
	started  bool
	finished bool
	done     chan struct{}
	outcome  Outcome
}

// NewSession builds a session around timer, which may be shared by sessions
// stepped on the same host loop so they split one per-step budget.
func NewSession(req StartRequest, timer *TickTimer, pacing Pacing) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if timer == nil {
		return nil, errors.New("vein: missing timer")
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	trav := NewTraversal(req.Grid, req.Match, req.Seed)
	pipe := NewPipeline(req.Actor, req.Tool, req.Destroy)
	obs := req.Observer
	if obs == nil {
		obs = Observers(nil)
	}
	return &Session{
		info: RunInfo{
			ID:        id,
			ActorID:   req.Actor.ID(),
			Seed:      req.Seed,
			StartStep: timer.clock.CurrentStep(),
		},
		clock: timer.clock,
		trav:  trav,
		pipe:  pipe,
		exec:  NewExecutor(trav, pipe, timer, pacing),
		obs:   obs,
		done:  make(chan struct{}),
	}, nil
}

func (s *Session) Info() RunInfo    { return s.info }
func (s *Session) Processed() int64 { return s.pipe.Processed() }
func (s *Session) MaxBatch() int    { return s.exec.MaxBatch() }

// Done is closed once the outcome is final.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outcome returns the final outcome, or ok=false while running.
func (s *Session) Outcome() (Outcome, bool) {
	select {
	case <-s.done:
		return s.outcome, true
	default:
		return Outcome{Status: StatusRunning, Processed: s.Processed()}, false
	}
}

// Wait blocks until the run ends. The returned error is the unexpected
// failure that ended the run, if any.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		return s.outcome, s.outcome.Err
	case <-ctx.Done():
		return Outcome{Status: StatusRunning, Processed: s.Processed()}, ctx.Err()
	}
}

// begin announces the run to the observer once.
func (s *Session) begin() {
	if s.started {
		return
	}
	s.started = true
	s.obs.RunStarted(s.info)
}

// Step runs one step of the outer loop and reports whether the run ended.
func (s *Session) Step() bool {
	if s.finished {
		return true
	}
	s.begin()
	rep, done, err := s.exec.Step()
	s.steps++
	rep.Processed = s.pipe.Processed()
	s.obs.StepDone(s.info, rep)
	if err != nil || done {
		s.finish(err)
		return true
	}
	return false
}

// Run drives the session on the calling goroutine, suspending on w between
// steps, and returns like Wait.
func (s *Session) Run(ctx context.Context, w StepWaiter) (Outcome, error) {
	if s.finished {
		return s.outcome, s.outcome.Err
	}
	s.begin()
	for {
		if err := ctx.Err(); err != nil {
			s.finish(err)
			break
		}
		step := w.CurrentStep()
		if s.Step() {
			break
		}
		if _, err := w.WaitAfter(ctx, step); err != nil {
			s.finish(err)
			break
		}
	}
	return s.outcome, s.outcome.Err
}

// finish interprets the error that ended the run. ErrToolUnavailable is the
// only failure turned into a plain interruption; anything else is kept as-is.
func (s *Session) finish(err error) {
	if s.finished {
		return
	}
	s.begin()
	s.finished = true
	out := Outcome{
		Status:    StatusCompleted,
		Processed: s.pipe.Processed(),
		Destroyed: s.pipe.Destroyed(),
		Steps:     s.steps,
		EndStep:   s.clock.CurrentStep(),
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrToolUnavailable):
		out.Status = StatusInterrupted
		out.Reason = protocol.ReasonToolUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Status = StatusInterrupted
		out.Reason = protocol.ReasonCanceled
		out.Err = err
	default:
		out.Status = StatusInterrupted
		out.Reason = protocol.ReasonInternal
		out.Err = err
	}
	s.outcome = out
	close(s.done)
	s.obs.RunEnded(s.info, out)
}

func (s *Session) String() string {
	return fmt.Sprintf("vein run %s actor=%s seed=%v", s.info.ID, s.info.ActorID, s.info.Seed.ToArray())
}
