package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Agents       int    `json:"agents"`
	LoadedChunks int    `json:"loaded_chunks"`
	ActiveRuns   int    `json:"active_runs"`
	RunsStarted  uint64 `json:"runs_started"`
	BlocksBroken uint64 `json:"blocks_broken"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Join  int `json:"join"`
	Vein  int `json:"vein"`
	Agent int `json:"agent"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, ok := w.metrics.Load().(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(stepDur time.Duration) {
	w.metrics.Store(WorldMetrics{
		Tick:         w.clock.CurrentStep(),
		Agents:       len(w.agents),
		LoadedChunks: w.chunks.LoadedChunks(),
		ActiveRuns:   w.runner.Active(),
		RunsStarted:  w.runs.startedTotal(),
		BlocksBroken: w.blocksBroken,
		QueueDepths: QueueDepths{
			Join:  len(w.join),
			Vein:  len(w.veinReq),
			Agent: len(w.agentReq),
		},
		StepMS: float64(stepDur.Microseconds()) / 1000.0,
	})
}
