package vein

import (
	"log"
	"time"
)

type RunnerConfig struct {
	Clock  StepClock
	Pacing Pacing
	// Observer is notified for every session, after the request's own observer.
	Observer Observer
	Logger   *log.Logger
	// Now overrides the wall clock used for budgeting (tests).
	Now func() time.Time
}

// Runner steps every active session once per host step. All sessions share a
// single TickTimer, so the per-step budget bounds their combined work; each
// session still gets at least one batch per step.
//
// Start and Tick must be called from the host loop goroutine.
type Runner struct {
	clock  StepClock
	pacing Pacing
	timer  *TickTimer
	obs    Observer
	log    *log.Logger

	active []*Session
}

func NewRunner(cfg RunnerConfig) *Runner {
	pacing := cfg.Pacing.Normalize()
	return &Runner{
		clock:  cfg.Clock,
		pacing: pacing,
		timer:  NewTickTimer(pacing.Budget, cfg.Clock, cfg.Now),
		obs:    cfg.Observer,
		log:    cfg.Logger,
	}
}

// Start registers a run. No cells are touched until the next Tick.
func (r *Runner) Start(req StartRequest) (*Session, error) {
	runLog := logObserver{log: r.log}
	req.Observer = Observers{req.Observer, r.obs, runLog}
	s, err := NewSession(req, r.timer, r.pacing)
	if err != nil {
		return nil, err
	}
	s.begin()
	r.active = append(r.active, s)
	return s, nil
}

// Tick advances each active session by one step and drops finished ones.
// It returns the number of sessions still active.
func (r *Runner) Tick() int {
	kept := r.active[:0]
	for _, s := range r.active {
		if !s.Step() {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(r.active); i++ {
		r.active[i] = nil
	}
	r.active = kept
	return len(r.active)
}

func (r *Runner) Active() int { return len(r.active) }

func (r *Runner) Pacing() Pacing { return r.pacing }

type logObserver struct{ log *log.Logger }

func (l logObserver) RunStarted(info RunInfo) {
	if l.log == nil {
		return
	}
	l.log.Printf("vein start run=%s actor=%s seed=%v step=%d", info.ID, info.ActorID, info.Seed.ToArray(), info.StartStep)
}

func (l logObserver) StepDone(RunInfo, StepReport) {}

func (l logObserver) RunEnded(info RunInfo, out Outcome) {
	if l.log == nil {
		return
	}
	switch {
	case out.Err != nil:
		l.log.Printf("vein failed run=%s actor=%s processed=%d reason=%s err=%v", info.ID, info.ActorID, out.Processed, out.Reason, out.Err)
	case out.Interrupted():
		l.log.Printf("vein interrupted run=%s actor=%s processed=%d reason=%s", info.ID, info.ActorID, out.Processed, out.Reason)
	default:
		l.log.Printf("vein done run=%s actor=%s processed=%d steps=%d", info.ID, info.ActorID, out.Processed, out.Steps)
	}
}
