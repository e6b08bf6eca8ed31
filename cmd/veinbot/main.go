package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"veinmine.ai/internal/protocol"
)

func main() {
	var (
		server = flag.String("server", "http://localhost:8080", "veinserver base url")
		name   = flag.String("name", "bot", "agent name")
		agent  = flag.String("agent", "", "existing agent id (skips join)")
		items  = flag.String("items", "IRON_PICKAXE=1,IRON_AXE=1,IRON_SHOVEL=1", "starting inventory for a new agent")
		target = flag.String("pos", "0,-10,0", "seed block position x,y,z")
		blocks = flag.String("blocks", "", "comma separated block ids to mine instead of the seed's vein group")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[veinbot] ", log.LstdFlags|log.Lmicroseconds)

	pos, err := parseVec(*target)
	if err != nil {
		logger.Fatalf("-pos: %v", err)
	}
	inv, err := parseItems(*items)
	if err != nil {
		logger.Fatalf("-items: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newClient(*server, logger)
	id := *agent
	if id == "" {
		id, err = c.join(ctx, protocol.JoinRequest{Name: *name, Pos: [3]int{pos[0], pos[1] + 1, pos[2]}, Inventory: inv})
		if err != nil {
			logger.Fatalf("join: %v", err)
		}
		logger.Printf("joined as %s", id)
	}

	req := protocol.VeinRequest{AgentID: id, Pos: pos}
	if *blocks != "" {
		req.Blocks = strings.Split(*blocks, ",")
	}
	st, err := c.mine(ctx, req)
	if err != nil {
		logger.Fatalf("mine: %v", err)
	}
	logger.Printf("run %s %s reason=%q processed=%d", st.RunID, st.Status, st.Reason, st.Processed)
}

func parseVec(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}

func parseItems(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		item, count, ok := strings.Cut(kv, "=")
		if !ok {
			out[item] = 1
			continue
		}
		n, err := strconv.Atoi(count)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("bad count in %q", kv)
		}
		out[item] = n
	}
	return out, nil
}
