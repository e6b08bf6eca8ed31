package protocol

// Event is a loosely-typed notification appended to an agent's event log.
type Event map[string]interface{}

// SUBSCRIBE (observer -> server). An empty RunID subscribes to every run.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id,omitempty"`
}

// RUN_STARTED (server -> observer)
type RunStartedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	AgentID         string `json:"agent_id"`
	Seed            [3]int `json:"seed"`
	Tick            uint64 `json:"tick"`
}

// RUN_STEP (server -> observer)
type RunStepMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RunID           string  `json:"run_id"`
	Tick            uint64  `json:"tick"`
	Batches         int     `json:"batches"`
	Cells           int     `json:"cells"`
	Processed       int64   `json:"processed"`
	MaxBatch        int     `json:"max_batch"`
	ActiveMS        float64 `json:"active_ms"`
	OverBudget      bool    `json:"over_budget,omitempty"`
}

// RUN_ENDED (server -> observer)
type RunEndedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Tick            uint64 `json:"tick"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	Message         string `json:"message,omitempty"`
	Processed       int64  `json:"processed"`
}

// VeinRequest is the body of POST /v1/vein.
type VeinRequest struct {
	AgentID string   `json:"agent_id"`
	Pos     [3]int   `json:"pos"`
	Blocks  []string `json:"blocks,omitempty"`
}

// RunStatus is returned by POST /v1/vein and GET /v1/runs.
type RunStatus struct {
	RunID     string `json:"run_id"`
	AgentID   string `json:"agent_id,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Processed int64  `json:"processed"`
}

// ErrorResponse carries one of the E_* codes.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JoinRequest is the body of POST /v1/agents.
type JoinRequest struct {
	Name      string         `json:"name"`
	Pos       [3]int         `json:"pos"`
	Inventory map[string]int `json:"inventory,omitempty"`
}

type JoinResponse struct {
	AgentID string `json:"agent_id"`
}
