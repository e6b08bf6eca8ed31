package log

import (
	stdlog "log"
	"path/filepath"
	"sync"

	"veinmine.ai/internal/sim/vein"
)

// RunJournal records every run notification as one JSONL line under
// <dataDir>/runs/runs-*.jsonl.zst.
type RunJournal struct {
	w   *JSONLZstdWriter
	log *stdlog.Logger

	mu     sync.Mutex
	failed bool
	err    error
	// Steps are skipped unless set; they dominate the journal size.
	steps bool
}

var _ vein.Observer = (*RunJournal)(nil)

func NewRunJournal(dataDir string, withSteps bool, logger *stdlog.Logger) *RunJournal {
	return &RunJournal{
		w:     NewJSONLZstdWriter(filepath.Join(dataDir, "runs"), "runs"),
		log:   logger,
		steps: withSteps,
	}
}

func (j *RunJournal) RunStarted(info vein.RunInfo) { j.write(vein.StartedMsg(info)) }

func (j *RunJournal) StepDone(info vein.RunInfo, rep vein.StepReport) {
	if j.steps {
		j.write(vein.StepMsg(info, rep))
	}
}

func (j *RunJournal) RunEnded(info vein.RunInfo, out vein.Outcome) { j.write(vein.EndedMsg(info, out)) }

// Err returns the first write error, if any.
func (j *RunJournal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *RunJournal) Close() error { return j.w.Close() }

// OnSegmentClosed forwards closed journal files to fn, e.g. an object store
// mirror.
func (j *RunJournal) OnSegmentClosed(fn func(path string)) { j.w.OnSegmentClosed(fn) }

func (j *RunJournal) write(v any) {
	err := j.w.Write(v)
	if err == nil {
		return
	}
	j.mu.Lock()
	first := !j.failed
	if first {
		j.failed = true
		j.err = err
	}
	j.mu.Unlock()
	if first && j.log != nil {
		j.log.Printf("run journal write: %v", err)
	}
}
