package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"veinmine.ai/internal/metrics"
	"veinmine.ai/internal/persistence/indexdb"
	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/world"
)

const (
	requestTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// runIndex is the read side of the sqlite index. It is nil when the index is
// disabled, in which case only runs still held by the world are visible.
type runIndex interface {
	GetRun(ctx context.Context, id string) (indexdb.RunRow, bool, error)
	AgentRuns(ctx context.Context, agentID string, limit int) ([]indexdb.RunRow, error)
}

type api struct {
	w   *world.World
	idx runIndex
	log *log.Logger
}

func (a *api) routes(mux *http.ServeMux, col *metrics.Collector) {
	handle := func(path string, h http.HandlerFunc) {
		if col != nil {
			mux.Handle(path, col.Instrument(path, h))
			return
		}
		mux.Handle(path, h)
	}
	handle("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	handle("/v1/agents", a.handleAgents)
	handle("/v1/vein", a.handleVein)
	handle("/v1/runs", a.handleRuns)
}

func (a *api) handleAgents(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(rw, protocol.ErrBadRequest, "missing id")
			return
		}
		view, err := a.w.Agent(ctx, id)
		if err != nil {
			a.writeWorldError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, view)
	case http.MethodPost:
		var req protocol.JoinRequest
		if !decodeBody(rw, r, &req) {
			return
		}
		id, err := a.w.Join(ctx, req.Name, vecOf(req.Pos), req.Inventory)
		if err != nil {
			a.writeWorldError(rw, err)
			return
		}
		writeJSON(rw, http.StatusCreated, protocol.JoinResponse{AgentID: id})
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *api) handleVein(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req protocol.VeinRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if req.AgentID == "" {
		writeError(rw, protocol.ErrBadRequest, "missing agent_id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	runID, err := a.w.StartVein(ctx, req.AgentID, vecOf(req.Pos), req.Blocks)
	if err != nil {
		a.writeWorldError(rw, err)
		return
	}
	st, ok := a.w.RunStatus(runID)
	if !ok {
		st = protocol.RunStatus{RunID: runID, AgentID: req.AgentID, Status: "running"}
	}
	writeJSON(rw, http.StatusAccepted, st)
}

func (a *api) handleRuns(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	if agentID := q.Get("agent_id"); agentID != "" {
		a.listAgentRuns(rw, r, agentID)
		return
	}
	id := q.Get("id")
	if id == "" {
		writeError(rw, protocol.ErrBadRequest, "missing id or agent_id")
		return
	}
	if st, ok := a.w.RunStatus(id); ok {
		writeJSON(rw, http.StatusOK, st)
		return
	}
	if a.idx != nil {
		row, ok, err := a.idx.GetRun(r.Context(), id)
		if err != nil {
			a.log.Printf("index get run %s: %v", id, err)
			writeError(rw, protocol.ErrInternal, "index lookup failed")
			return
		}
		if ok {
			writeJSON(rw, http.StatusOK, protocol.RunStatus{
				RunID:     row.RunID,
				AgentID:   row.AgentID,
				Status:    row.Status,
				Reason:    row.Reason,
				Processed: row.Processed,
			})
			return
		}
	}
	writeError(rw, protocol.ErrNotFound, "unknown run")
}

func (a *api) listAgentRuns(rw http.ResponseWriter, r *http.Request, agentID string) {
	if a.idx == nil {
		writeError(rw, protocol.ErrNotFound, "run index disabled")
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(rw, protocol.ErrBadRequest, "bad limit")
			return
		}
		limit = n
	}
	rows, err := a.idx.AgentRuns(r.Context(), agentID, limit)
	if err != nil {
		a.log.Printf("index agent runs %s: %v", agentID, err)
		writeError(rw, protocol.ErrInternal, "index lookup failed")
		return
	}
	if rows == nil {
		rows = []indexdb.RunRow{}
	}
	writeJSON(rw, http.StatusOK, rows)
}

func (a *api) writeWorldError(rw http.ResponseWriter, err error) {
	var re *world.RequestError
	switch {
	case errors.As(err, &re):
		writeError(rw, re.Code, re.Message)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(rw, protocol.ErrBusy, "world did not answer in time")
	default:
		a.log.Printf("world request: %v", err)
		writeError(rw, protocol.ErrInternal, err.Error())
	}
}

func httpStatus(code string) int {
	switch code {
	case protocol.ErrBadRequest:
		return http.StatusBadRequest
	case protocol.ErrNotFound:
		return http.StatusNotFound
	case protocol.ErrInvalidTarget:
		return http.StatusUnprocessableEntity
	case protocol.ErrNoTool, protocol.ErrBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(rw http.ResponseWriter, code, msg string) {
	writeJSON(rw, httpStatus(code), protocol.ErrorResponse{Code: code, Message: msg})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func decodeBody(rw http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(rw, protocol.ErrBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}

func vecOf(p [3]int) world.Vec3i { return world.Vec3i{X: p[0], Y: p[1], Z: p[2]} }
