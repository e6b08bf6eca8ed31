package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"veinmine.ai/internal/protocol"
)

type client struct {
	base string
	http *http.Client
	log  *log.Logger
	// poll is how often run status is fetched in case the feed missed the end.
	poll time.Duration
}

func newClient(base string, logger *log.Logger) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
		log:  logger,
		poll: time.Second,
	}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var er protocol.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && er.Code != "" {
			return fmt.Errorf("%s %s: %s: %s", method, path, er.Code, er.Message)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) join(ctx context.Context, req protocol.JoinRequest) (string, error) {
	var resp protocol.JoinResponse
	if err := c.do(ctx, http.MethodPost, "/v1/agents", req, &resp); err != nil {
		return "", err
	}
	return resp.AgentID, nil
}

func (c *client) startVein(ctx context.Context, req protocol.VeinRequest) (protocol.RunStatus, error) {
	var st protocol.RunStatus
	err := c.do(ctx, http.MethodPost, "/v1/vein", req, &st)
	return st, err
}

func (c *client) runStatus(ctx context.Context, id string) (protocol.RunStatus, error) {
	var st protocol.RunStatus
	err := c.do(ctx, http.MethodGet, "/v1/runs?id="+url.QueryEscape(id), nil, &st)
	return st, err
}

// subscribe opens the observer feed for every run.
func (c *client) subscribe(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.base + "/v1/observe")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	sub := protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// mine starts a run and follows it on the feed until it ends. Feed messages
// for other runs are ignored; polling covers a run that ended before the
// subscription took effect.
func (c *client) mine(ctx context.Context, req protocol.VeinRequest) (protocol.RunStatus, error) {
	conn, err := c.subscribe(ctx)
	if err != nil {
		return protocol.RunStatus{}, fmt.Errorf("subscribe: %w", err)
	}
	defer conn.Close()

	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case msgs <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	st, err := c.startVein(ctx, req)
	if err != nil {
		return st, err
	}
	c.log.Printf("run %s started agent=%s", st.RunID, st.AgentID)

	tick := time.NewTicker(c.poll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-tick.C:
			cur, err := c.runStatus(ctx, st.RunID)
			if err != nil {
				c.log.Printf("poll: %v", err)
				continue
			}
			if cur.Status != "running" {
				return cur, nil
			}
		case b, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			if done, final := c.handle(st, b); done {
				return final, nil
			}
		}
	}
}

func (c *client) handle(st protocol.RunStatus, b []byte) (bool, protocol.RunStatus) {
	base, err := protocol.DecodeBase(b)
	if err != nil {
		return false, st
	}
	switch base.Type {
	case protocol.TypeRunStep:
		var m protocol.RunStepMsg
		if json.Unmarshal(b, &m) == nil && m.RunID == st.RunID {
			c.log.Printf("tick=%d cells=%d processed=%d max_batch=%d active_ms=%.2f", m.Tick, m.Cells, m.Processed, m.MaxBatch, m.ActiveMS)
		}
	case protocol.TypeRunEnded:
		var m protocol.RunEndedMsg
		if json.Unmarshal(b, &m) == nil && m.RunID == st.RunID {
			st.Status, st.Reason, st.Processed = m.Status, m.Reason, m.Processed
			return true, st
		}
	}
	return false, st
}
