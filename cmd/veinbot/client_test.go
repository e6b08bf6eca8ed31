package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/vein"
	"veinmine.ai/internal/transport/observer"
)

// fakeServer answers the HTTP API and replays a fixed run on a real feed.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	feed := observer.NewServer(nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observe", feed.WSHandler())
	mux.HandleFunc("/v1/agents", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(rw).Encode(protocol.JoinResponse{AgentID: "A1"})
	})
	mux.HandleFunc("/v1/runs", func(rw http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(rw).Encode(protocol.RunStatus{RunID: r.URL.Query().Get("id"), Status: "running"})
	})
	mux.HandleFunc("/v1/vein", func(rw http.ResponseWriter, r *http.Request) {
		var req protocol.VeinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID != "A1" {
			rw.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(rw).Encode(protocol.ErrorResponse{Code: protocol.ErrBadRequest, Message: "bad"})
			return
		}
		deadline := time.Now().Add(2 * time.Second)
		for feed.Subscribers() == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		info := vein.RunInfo{ID: "run-7", ActorID: "A1", Seed: vein.Vec3i{X: req.Pos[0], Y: req.Pos[1], Z: req.Pos[2]}}
		other := vein.RunInfo{ID: "run-8", ActorID: "A2"}
		feed.RunStarted(info)
		feed.StepDone(info, vein.StepReport{Step: 1, Cells: 200, Processed: 200, MaxBatch: 200})
		feed.RunEnded(other, vein.Outcome{Status: vein.StatusCompleted, Processed: 1})
		feed.RunEnded(info, vein.Outcome{Status: vein.StatusInterrupted, Reason: protocol.ReasonToolUnavailable, Processed: 230})

		rw.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(rw).Encode(protocol.RunStatus{RunID: "run-7", AgentID: "A1", Status: "running"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestMineFollowsFeed(t *testing.T) {
	srv := fakeServer(t)
	c := newClient(srv.URL, log.New(io.Discard, "", 0))
	c.poll = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := c.join(ctx, protocol.JoinRequest{Name: "bot"})
	if err != nil || id != "A1" {
		t.Fatalf("join id=%q err=%v", id, err)
	}
	st, err := c.mine(ctx, protocol.VeinRequest{AgentID: id, Pos: [3]int{1, -10, 2}})
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	want := protocol.RunStatus{RunID: "run-7", AgentID: "A1", Status: "interrupted", Reason: protocol.ReasonToolUnavailable, Processed: 230}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("status (-want +got):\n%s", diff)
	}
}

func TestMineReportsRequestErrors(t *testing.T) {
	srv := fakeServer(t)
	c := newClient(srv.URL, log.New(io.Discard, "", 0))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.mine(ctx, protocol.VeinRequest{AgentID: "nobody"})
	if err == nil || err.Error() != "POST /v1/vein: E_BAD_REQUEST: bad" {
		t.Fatalf("err=%v", err)
	}
}

func TestParseFlags(t *testing.T) {
	v, err := parseVec(" 3, -12,7")
	if err != nil || v != [3]int{3, -12, 7} {
		t.Fatalf("vec=%v err=%v", v, err)
	}
	if _, err := parseVec("1,2"); err == nil {
		t.Fatalf("expected error for short vec")
	}
	items, err := parseItems("IRON_PICKAXE=1, LOG=4,COAL")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"IRON_PICKAXE": 1, "LOG": 4, "COAL": 1}, items); diff != "" {
		t.Fatalf("items (-want +got):\n%s", diff)
	}
	if _, err := parseItems("LOG=0"); err == nil {
		t.Fatalf("expected error for zero count")
	}
}
