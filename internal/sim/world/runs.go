package world

import (
	"sync"

	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/vein"
)

// runRegistry keeps the status of active runs and a bounded number of
// finished ones. Written from the world loop, read from HTTP handlers.
type runRegistry struct {
	mu      sync.Mutex
	limit   int
	runs    map[string]*protocol.RunStatus
	done    []string // finished run ids, oldest first
	started uint64
}

func newRunRegistry(limit int) *runRegistry {
	return &runRegistry{limit: limit, runs: map[string]*protocol.RunStatus{}}
}

func (r *runRegistry) RunStarted(info vein.RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	r.runs[info.ID] = &protocol.RunStatus{
		RunID:   info.ID,
		AgentID: info.ActorID,
		Status:  string(vein.StatusRunning),
	}
}

func (r *runRegistry) StepDone(info vein.RunInfo, rep vein.StepReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.runs[info.ID]; st != nil {
		st.Processed = rep.Processed
	}
}

func (r *runRegistry) RunEnded(info vein.RunInfo, out vein.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.runs[info.ID]
	if st == nil {
		return
	}
	st.Status = string(out.Status)
	st.Reason = out.Reason
	st.Processed = out.Processed
	r.done = append(r.done, info.ID)
	for len(r.done) > r.limit {
		delete(r.runs, r.done[0])
		r.done = r.done[1:]
	}
}

func (r *runRegistry) get(id string) (protocol.RunStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.runs[id]
	if !ok {
		return protocol.RunStatus{}, false
	}
	return *st, true
}

func (r *runRegistry) startedTotal() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}
