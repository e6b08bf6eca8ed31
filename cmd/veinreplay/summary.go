package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"veinmine.ai/internal/protocol"
)

// runSummary folds the journal lines of one run.
type runSummary struct {
	RunID     string
	AgentID   string
	Seed      [3]int
	StartTick uint64
	EndTick   uint64
	Steps     int
	Cells     int64
	OverSteps int
	MaxBatch  int
	Processed int64
	Status    string
	Reason    string
	Message   string
}

type replay struct {
	filter string
	runs   map[string]*runSummary
	order  []string
	lines  int
	skip   int
}

func newReplay(filter string) *replay {
	return &replay{filter: filter, runs: map[string]*runSummary{}}
}

func (r *replay) run(id string) *runSummary {
	s := r.runs[id]
	if s == nil {
		s = &runSummary{RunID: id, Status: "running"}
		r.runs[id] = s
		r.order = append(r.order, id)
	}
	return s
}

// apply consumes one journal line. Unknown message types are counted and
// skipped so newer journals stay readable.
func (r *replay) apply(line []byte) error {
	r.lines++
	base, err := protocol.DecodeBase(line)
	if err != nil {
		return fmt.Errorf("line %d: %w", r.lines, err)
	}
	switch base.Type {
	case protocol.TypeRunStarted:
		var m protocol.RunStartedMsg
		if err := json.Unmarshal(line, &m); err != nil {
			return fmt.Errorf("line %d: %w", r.lines, err)
		}
		if !r.want(m.RunID) {
			return nil
		}
		s := r.run(m.RunID)
		s.AgentID, s.Seed, s.StartTick = m.AgentID, m.Seed, m.Tick
	case protocol.TypeRunStep:
		var m protocol.RunStepMsg
		if err := json.Unmarshal(line, &m); err != nil {
			return fmt.Errorf("line %d: %w", r.lines, err)
		}
		if !r.want(m.RunID) {
			return nil
		}
		s := r.run(m.RunID)
		s.Steps++
		s.Cells += int64(m.Cells)
		s.Processed = m.Processed
		if m.OverBudget {
			s.OverSteps++
		}
		if m.MaxBatch > s.MaxBatch {
			s.MaxBatch = m.MaxBatch
		}
	case protocol.TypeRunEnded:
		var m protocol.RunEndedMsg
		if err := json.Unmarshal(line, &m); err != nil {
			return fmt.Errorf("line %d: %w", r.lines, err)
		}
		if !r.want(m.RunID) {
			return nil
		}
		s := r.run(m.RunID)
		s.EndTick = m.Tick
		s.Status, s.Reason, s.Message = m.Status, m.Reason, m.Message
		s.Processed = m.Processed
	default:
		r.skip++
	}
	return nil
}

func (r *replay) want(id string) bool { return r.filter == "" || r.filter == id }

// summaries returns runs in order of first appearance.
func (r *replay) summaries() []runSummary {
	out := make([]runSummary, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.runs[id])
	}
	return out
}

func (r *replay) print(out io.Writer) {
	counts := map[string]int{}
	for _, s := range r.summaries() {
		key := s.Status
		if s.Reason != "" {
			key += "/" + s.Reason
		}
		counts[key]++
		fmt.Fprintf(out, "run=%s agent=%s seed=%v ticks=%d..%d status=%s", s.RunID, s.AgentID, s.Seed, s.StartTick, s.EndTick, s.Status)
		if s.Reason != "" {
			fmt.Fprintf(out, " reason=%s", s.Reason)
		}
		fmt.Fprintf(out, " processed=%d", s.Processed)
		if s.Steps > 0 {
			fmt.Fprintf(out, " steps=%d cells=%d over_budget=%d max_batch=%d", s.Steps, s.Cells, s.OverSteps, s.MaxBatch)
		}
		if s.Message != "" {
			fmt.Fprintf(out, " err=%q", s.Message)
		}
		fmt.Fprintln(out)
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "lines=%d runs=%d skipped=%d", r.lines, len(r.order), r.skip)
	for _, k := range keys {
		fmt.Fprintf(out, " %s=%d", k, counts[k])
	}
	fmt.Fprintln(out)
}
