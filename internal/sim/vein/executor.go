package vein

import "time"

// Pacing controls how much work a session attempts per step.
type Pacing struct {
	Budget     time.Duration
	MaxBatch   int
	MinBatch   int
	BatchStep  int
	AutoAdjust bool
}

func DefaultPacing() Pacing {
	return Pacing{
		Budget:     DefaultStepBudget,
		MaxBatch:   200,
		MinBatch:   20,
		BatchStep:  20,
		AutoAdjust: true,
	}
}

// Normalize fills unset fields from DefaultPacing and keeps MaxBatch at or
// above MinBatch. AutoAdjust is taken as given.
func (p Pacing) Normalize() Pacing {
	def := DefaultPacing()
	if p.Budget <= 0 {
		p.Budget = def.Budget
	}
	if p.MinBatch <= 0 {
		p.MinBatch = def.MinBatch
	}
	if p.MaxBatch <= 0 {
		p.MaxBatch = def.MaxBatch
	}
	if p.MaxBatch < p.MinBatch {
		p.MaxBatch = p.MinBatch
	}
	if p.BatchStep <= 0 {
		p.BatchStep = def.BatchStep
	}
	return p
}

// BatchSink consumes one batch of discovered cells.
type BatchSink interface {
	DestroyBatch(cells []Vec3i) error
}

// StepReport summarizes the work done in one step.
type StepReport struct {
	Step       uint64
	Batches    int
	Cells      int
	MaxBatch   int
	Active     time.Duration
	OverBudget bool
	Processed  int64
}

// Executor drives a Source into a BatchSink under a per-step time budget.
// Batch size grows by BatchStep after every batch that finishes under budget
// and shrinks by BatchStep once per step, never below MinBatch.
type Executor struct {
	src    Source
	sink   BatchSink
	timer  *TickTimer
	pacing Pacing

	maxBatch int
}

func NewExecutor(src Source, sink BatchSink, timer *TickTimer, pacing Pacing) *Executor {
	pacing = pacing.Normalize()
	return &Executor{
		src:      src,
		sink:     sink,
		timer:    timer,
		pacing:   pacing,
		maxBatch: pacing.MaxBatch,
	}
}

func (e *Executor) MaxBatch() int { return e.maxBatch }
func (e *Executor) HasMore() bool { return e.src.HasMore() }

// ContinueNext runs batches until the source is drained or the step budget is
// spent. A batch already handed to the sink is never cut short.
func (e *Executor) ContinueNext() (StepReport, error) {
	rep := StepReport{Step: e.timer.clock.CurrentStep()}
	start := e.timer.now()
	e.timer.Activate()

	for e.src.HasMore() {
		cells := e.src.Next(e.maxBatch)
		if len(cells) > 0 {
			if err := e.sink.DestroyBatch(cells); err != nil {
				rep.Active = e.timer.now().Sub(start)
				rep.MaxBatch = e.maxBatch
				return rep, err
			}
			rep.Batches++
			rep.Cells += len(cells)
		}
		if e.timer.OverBudget() {
			rep.OverBudget = true
			break
		}
		if e.pacing.AutoAdjust {
			e.maxBatch += e.pacing.BatchStep
		}
	}

	e.timer.Deactivate()
	rep.Active = e.timer.now().Sub(start)
	rep.MaxBatch = e.maxBatch
	return rep, nil
}

// Step runs one outer iteration: ContinueNext followed by the per-step
// batch-size decay. done is true once the source is drained or on error.
func (e *Executor) Step() (rep StepReport, done bool, err error) {
	if !e.src.HasMore() {
		return StepReport{Step: e.timer.clock.CurrentStep(), MaxBatch: e.maxBatch}, true, nil
	}
	rep, err = e.ContinueNext()
	if err != nil {
		e.timer.Deactivate()
		return rep, true, err
	}
	if e.pacing.AutoAdjust {
		e.maxBatch -= e.pacing.BatchStep
		if e.maxBatch < e.pacing.MinBatch {
			e.maxBatch = e.pacing.MinBatch
		}
	}
	rep.MaxBatch = e.maxBatch
	return rep, !e.src.HasMore(), nil
}
