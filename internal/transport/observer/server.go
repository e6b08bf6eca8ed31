package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/vein"
)

// Server streams run progress to websocket observers. It is also a
// vein.Observer: notifications are encoded once and fanned out without
// blocking the world loop; slow clients lose their oldest messages.
type Server struct {
	log *log.Logger
	// AllowRemote lifts the loopback-only restriction.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[string]*subscriber
}

type subscriber struct {
	out   chan []byte
	runID atomic.Value // string; "" = all runs
}

var _ vein.Observer = (*Server)(nil)

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[string]*subscriber{},
	}
}

func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) RunStarted(info vein.RunInfo) { s.broadcast(info.ID, vein.StartedMsg(info)) }

func (s *Server) StepDone(info vein.RunInfo, rep vein.StepReport) {
	s.broadcast(info.ID, vein.StepMsg(info, rep))
}

func (s *Server) RunEnded(info vein.RunInfo, out vein.Outcome) {
	s.broadcast(info.ID, vein.EndedMsg(info, out))
}

func (s *Server) broadcast(runID string, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, sub := range s.subs {
		if want, _ := sub.runID.Load().(string); want != "" && want != runID {
			continue
		}
		sendLatest(sub.out, b)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		st := &subscriber{out: make(chan []byte, 256)}
		st.runID.Store(sub.RunID)
		s.mu.Lock()
		s.subs[sid] = st
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, sid)
			s.mu.Unlock()
		}()
		if s.log != nil {
			s.log.Printf("observer %s subscribed run=%q remote=%s", sid, sub.RunID, r.RemoteAddr)
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-st.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: a later SUBSCRIBE changes the run filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				st.runID.Store(sub.RunID)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(b []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(b, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return sub, false
	}
	sub.RunID = strings.TrimSpace(sub.RunID)
	return sub, true
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
