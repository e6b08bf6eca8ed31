package observer

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/vein"
)

func dial(t *testing.T, srvURL string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srvURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func subscribe(t *testing.T, s *Server, conn *websocket.Conn, runID string, wantSubs int) {
	t.Helper()
	msg, _ := json.Marshal(protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, RunID: runID})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Subscribers() < wantSubs {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readBase(t *testing.T, conn *websocket.Conn) (protocol.BaseMessage, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base, b
}

func TestServerStreamsRunLifecycle(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dial(t, srv.URL)
	subscribe(t, s, conn, "", 1)

	info := vein.RunInfo{ID: "run-1", ActorID: "A1", Seed: vein.Vec3i{X: 4}}
	s.RunStarted(info)
	s.StepDone(info, vein.StepReport{Cells: 12, Processed: 12})
	s.RunEnded(info, vein.Outcome{Status: vein.StatusCompleted, Processed: 12})

	base, b := readBase(t, conn)
	if base.Type != protocol.TypeRunStarted {
		t.Fatalf("first=%s", base.Type)
	}
	var started protocol.RunStartedMsg
	_ = json.Unmarshal(b, &started)
	if started.RunID != "run-1" || started.Seed != [3]int{4, 0, 0} {
		t.Fatalf("started=%+v", started)
	}
	if base, _ := readBase(t, conn); base.Type != protocol.TypeRunStep {
		t.Fatalf("second=%s", base.Type)
	}
	base, b = readBase(t, conn)
	if base.Type != protocol.TypeRunEnded {
		t.Fatalf("third=%s", base.Type)
	}
	var ended protocol.RunEndedMsg
	_ = json.Unmarshal(b, &ended)
	if ended.Status != "completed" || ended.Processed != 12 {
		t.Fatalf("ended=%+v", ended)
	}
}

func TestServerFiltersByRun(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dial(t, srv.URL)
	subscribe(t, s, conn, "wanted", 1)

	s.RunStarted(vein.RunInfo{ID: "other"})
	s.RunStarted(vein.RunInfo{ID: "wanted"})

	_, b := readBase(t, conn)
	var started protocol.RunStartedMsg
	_ = json.Unmarshal(b, &started)
	if started.RunID != "wanted" {
		t.Fatalf("got run %q", started.RunID)
	}
}

func TestServerRejectsBadHandshake(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dial(t, srv.URL)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("err=%v", err)
	}
	if s.Subscribers() != 0 {
		t.Fatalf("subscribers=%d", s.Subscribers())
	}
}

func TestSendLatestDropsOldest(t *testing.T) {
	ch := make(chan []byte, 2)
	sendLatest(ch, []byte("a"))
	sendLatest(ch, []byte("b"))
	sendLatest(ch, []byte("c"))
	if got := string(<-ch) + string(<-ch); got != "bc" {
		t.Fatalf("got %q", got)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.2:5000":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}
