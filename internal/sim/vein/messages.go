package vein

import (
	"time"

	"veinmine.ai/internal/protocol"
)

// Wire forms of the observer callbacks, shared by the journal and the feed.

func StartedMsg(info RunInfo) protocol.RunStartedMsg {
	return protocol.RunStartedMsg{
		Type:            protocol.TypeRunStarted,
		ProtocolVersion: protocol.Version,
		RunID:           info.ID,
		AgentID:         info.ActorID,
		Seed:            info.Seed.ToArray(),
		Tick:            info.StartStep,
	}
}

func StepMsg(info RunInfo, rep StepReport) protocol.RunStepMsg {
	return protocol.RunStepMsg{
		Type:            protocol.TypeRunStep,
		ProtocolVersion: protocol.Version,
		RunID:           info.ID,
		Tick:            rep.Step,
		Batches:         rep.Batches,
		Cells:           rep.Cells,
		Processed:       rep.Processed,
		MaxBatch:        rep.MaxBatch,
		ActiveMS:        float64(rep.Active) / float64(time.Millisecond),
		OverBudget:      rep.OverBudget,
	}
}

func EndedMsg(info RunInfo, out Outcome) protocol.RunEndedMsg {
	m := protocol.RunEndedMsg{
		Type:            protocol.TypeRunEnded,
		ProtocolVersion: protocol.Version,
		RunID:           info.ID,
		Tick:            out.EndStep,
		Status:          string(out.Status),
		Reason:          out.Reason,
		Processed:       out.Processed,
	}
	if out.Err != nil {
		m.Message = out.Err.Error()
	}
	return m
}
