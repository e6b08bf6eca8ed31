package world

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/catalogs"
	"veinmine.ai/internal/sim/mining"
	"veinmine.ai/internal/sim/tuning"
	"veinmine.ai/internal/sim/vein"
)

type WorldConfig struct {
	ID           string
	TickInterval time.Duration
	// StartTick is the first tick, non-zero when resuming from a snapshot.
	StartTick uint64
	Seed      int64
	BoundaryR int
	MinY      int
	MaxY      int

	// Worldgen tuning.
	OreClusterGrid         int
	OreClusterRadius       int
	OreClusterProbPermille int
	TreePermille           int

	Pacing        vein.Pacing
	MaxActiveRuns int
	RecentRuns    int

	// Starter items granted to agents that join without an inventory.
	StarterItems map[string]int

	Logger *log.Logger
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "WORLD_1"
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second / 20
	}
	if c.MaxY <= c.MinY {
		c.MinY, c.MaxY = -64, 64
	}
	if c.MaxActiveRuns <= 0 {
		c.MaxActiveRuns = 64
	}
	if c.RecentRuns <= 0 {
		c.RecentRuns = 256
	}
	c.Pacing = c.Pacing.Normalize()
}

// ConfigFromTuning maps tuning.yaml onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                     id,
		TickInterval:           t.TickInterval(),
		Seed:                   t.World.Seed,
		BoundaryR:              t.World.BoundaryR,
		MinY:                   t.World.MinY,
		MaxY:                   t.World.MaxY,
		OreClusterGrid:         t.World.OreClusterGrid,
		OreClusterRadius:       t.World.OreClusterRadius,
		OreClusterProbPermille: t.World.OreClusterProbPermille,
		TreePermille:           t.World.TreePermille,
		Pacing:                 t.Pacing(),
		MaxActiveRuns:          t.Vein.MaxActiveRuns,
		RecentRuns:             t.World.RecentRuns,
	}
}

type JoinRequest struct {
	Name      string
	Pos       Vec3i
	Inventory map[string]int
	Resp      chan JoinResponse
}

type JoinResponse struct {
	AgentID string
	Err     error
}

type VeinRequest struct {
	AgentID string
	Pos     Vec3i
	// Blocks overrides the seed's vein group with an explicit block list.
	Blocks []string
	Resp   chan VeinResponse
}

type VeinResponse struct {
	RunID string
	Err   error
}

type agentReq struct {
	ID   string
	Resp chan agentResp
}

type agentResp struct {
	View AgentView
	Err  error
}

type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	gen      WorldGen
	chunks   *ChunkStore
	log      *log.Logger

	// Accessed only from the world loop goroutine.
	agents       map[string]*Agent
	busy         map[string]string // agent id -> run id
	nextAgentNum int
	blocksBroken uint64

	clock  *vein.Clock
	runner *vein.Runner
	runs   *runRegistry
	obs    vein.Observer

	join     chan JoinRequest
	veinReq  chan VeinRequest
	agentReq chan agentReq
	stop     chan struct{}
	stopOnce sync.Once

	metrics atomic.Value
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()

	b := func(id string) (uint16, error) {
		v, ok := cats.Blocks.Index[id]
		if !ok {
			return 0, fmt.Errorf("missing block id in palette: %s", id)
		}
		return v, nil
	}
	var gen WorldGen
	for _, p := range []struct {
		id  string
		dst *uint16
	}{
		{"AIR", &gen.Air},
		{"BEDROCK", &gen.Bedrock},
		{"STONE", &gen.Stone},
		{"DIRT", &gen.Dirt},
		{"LOG", &gen.Log},
		{"COAL_ORE", &gen.CoalOre},
		{"IRON_ORE", &gen.IronOre},
		{"DEEP_IRON_ORE", &gen.DeepIronOre},
		{"COPPER_ORE", &gen.CopperOre},
		{"CRYSTAL_ORE", &gen.CrystalOre},
	} {
		v, err := b(p.id)
		if err != nil {
			return nil, err
		}
		*p.dst = v
	}
	gen.Seed = cfg.Seed
	gen.BoundaryR = cfg.BoundaryR
	gen.MinY = cfg.MinY
	gen.MaxY = cfg.MaxY
	gen.OreClusterGrid = cfg.OreClusterGrid
	gen.OreClusterRadius = cfg.OreClusterRadius
	gen.OreClusterProbPermille = cfg.OreClusterProbPermille
	gen.TreePermille = cfg.TreePermille

	w := &World{
		cfg:      cfg,
		catalogs: cats,
		gen:      gen,
		chunks:   NewChunkStore(gen),
		log:      cfg.Logger,
		agents:   map[string]*Agent{},
		busy:     map[string]string{},
		clock:    vein.NewClock(cfg.StartTick),
		runs:     newRunRegistry(cfg.RecentRuns),
		join:     make(chan JoinRequest, 64),
		veinReq:  make(chan VeinRequest, 256),
		agentReq: make(chan agentReq, 64),
		stop:     make(chan struct{}),
	}
	w.runner = vein.NewRunner(vein.RunnerConfig{
		Clock:    w.clock,
		Pacing:   cfg.Pacing,
		Observer: hostObserver{w: w},
		Logger:   cfg.Logger,
	})
	w.publishMetrics(0)
	return w, nil
}

// SetObserver installs the run observer (journal, index, metrics, feed).
// Must be called before Run.
func (w *World) SetObserver(o vein.Observer) { w.obs = o }

func (w *World) ID() string            { return w.cfg.ID }
func (w *World) CurrentTick() uint64   { return w.clock.CurrentStep() }
func (w *World) Pacing() vein.Pacing   { return w.runner.Pacing() }
func (w *World) Stop()                 { w.stopOnce.Do(func() { close(w.stop) }) }
func (w *World) Clock() vein.StepClock { return w.clock }

// RunStatus reports an active or recently finished run.
func (w *World) RunStatus(id string) (protocol.RunStatus, bool) { return w.runs.get(id) }

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	var pending []VeinRequest
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			id, err := w.handleJoin(req)
			req.Resp <- JoinResponse{AgentID: id, Err: err}
		case req := <-w.agentReq:
			w.handleAgentReq(req)
		case req := <-w.veinReq:
			pending = append(pending, req)
		case <-ticker.C:
			w.step(pending)
			pending = pending[:0]
		}
	}
}

// StepOnce advances the world by a single tick without new requests and
// returns the tick that was processed.
func (w *World) StepOnce() uint64 {
	tick := w.clock.CurrentStep()
	w.step(nil)
	return tick
}

func (w *World) step(reqs []VeinRequest) {
	start := time.Now()
	for _, req := range reqs {
		id, err := w.handleVein(req)
		if req.Resp != nil {
			req.Resp <- VeinResponse{RunID: id, Err: err}
		}
	}
	w.runner.Tick()
	for _, a := range w.agents {
		a.tickEffects()
	}
	w.clock.Advance()
	w.publishMetrics(time.Since(start))
}

// Join adds an agent and returns its id.
func (w *World) Join(ctx context.Context, name string, pos Vec3i, inv map[string]int) (string, error) {
	req := JoinRequest{Name: name, Pos: pos, Inventory: inv, Resp: make(chan JoinResponse, 1)}
	select {
	case w.join <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp.AgentID, resp.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// StartVein queues a vein run for the next tick and waits for it to be
// accepted or rejected.
func (w *World) StartVein(ctx context.Context, agentID string, pos Vec3i, blocks []string) (string, error) {
	req := VeinRequest{AgentID: agentID, Pos: pos, Blocks: blocks, Resp: make(chan VeinResponse, 1)}
	select {
	case w.veinReq <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp.RunID, resp.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Agent returns a copy of an agent's state.
func (w *World) Agent(ctx context.Context, id string) (AgentView, error) {
	req := agentReq{ID: id, Resp: make(chan agentResp, 1)}
	select {
	case w.agentReq <- req:
	case <-ctx.Done():
		return AgentView{}, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp.View, resp.Err
	case <-ctx.Done():
		return AgentView{}, ctx.Err()
	}
}

func (w *World) handleJoin(req JoinRequest) (string, error) {
	if !w.chunks.InBounds(req.Pos) {
		return "", reqErr(protocol.ErrBadRequest, "spawn position out of bounds")
	}
	inv := req.Inventory
	if inv == nil {
		inv = w.cfg.StarterItems
	}
	w.nextAgentNum++
	a := &Agent{
		ID:        fmt.Sprintf("A%d", w.nextAgentNum),
		Name:      req.Name,
		Pos:       req.Pos,
		Inventory: map[string]int{},
		Effects:   map[string]int{},
	}
	if a.Name == "" {
		a.Name = a.ID
	}
	for item, n := range inv {
		if _, ok := w.catalogs.Items.Defs[item]; !ok {
			w.nextAgentNum--
			return "", reqErr(protocol.ErrBadRequest, "unknown item "+item)
		}
		if n > 0 {
			a.Inventory[item] = n
		}
	}
	w.agents[a.ID] = a
	return a.ID, nil
}

func (w *World) handleAgentReq(req agentReq) {
	a := w.agents[req.ID]
	if a == nil {
		req.Resp <- agentResp{Err: reqErr(protocol.ErrNotFound, "unknown agent")}
		return
	}
	req.Resp <- agentResp{View: a.view(w.busy[a.ID])}
}

// handleVein validates a request, breaks the seed block and registers the
// run with the runner. The run's first batch happens in the same tick.
func (w *World) handleVein(req VeinRequest) (string, error) {
	a := w.agents[req.AgentID]
	if a == nil {
		return "", reqErr(protocol.ErrNotFound, "unknown agent")
	}
	if run := w.busy[a.ID]; run != "" {
		return "", reqErr(protocol.ErrBusy, "agent already running "+run)
	}
	if w.runner.Active() >= w.cfg.MaxActiveRuns {
		return "", reqErr(protocol.ErrBusy, "too many active runs")
	}
	if !w.chunks.InBounds(req.Pos) {
		return "", reqErr(protocol.ErrInvalidTarget, "position out of bounds")
	}

	seedBlock := w.chunks.Get(req.Pos)
	var match vein.Matcher
	var err error
	if len(req.Blocks) > 0 {
		match, err = w.catalogs.MatcherForNames(req.Blocks)
		if err != nil {
			return "", reqErr(protocol.ErrBadRequest, err.Error())
		}
		if !match(seedBlock) {
			return "", reqErr(protocol.ErrInvalidTarget, "seed block not in block list")
		}
	} else {
		match, err = w.catalogs.MatcherFor(seedBlock)
		if err != nil {
			return "", reqErr(protocol.ErrInvalidTarget, err.Error())
		}
	}

	tool := w.equip(a, w.catalogs.ToolFamilyFor(seedBlock))
	if tool == nil {
		return "", reqErr(protocol.ErrNoTool, "no usable tool")
	}
	start := vein.StartRequest{
		Seed:    req.Pos,
		Match:   match,
		Grid:    vein.GridFunc(w.chunks.Get),
		Destroy: w.destroyBlock,
		Actor:   &miner{w: w, a: a},
		Tool:    tool,
	}
	if err := start.Validate(); err != nil {
		return "", reqErr(protocol.ErrInternal, err.Error())
	}
	alive, err := w.breakSeed(a, req.Pos, tool)
	if err != nil {
		return "", reqErr(protocol.ErrInternal, err.Error())
	}
	if !alive {
		return "", reqErr(protocol.ErrNoTool, tool.Item+" broke on the seed block")
	}

	s, err := w.runner.Start(start)
	if err != nil {
		return "", reqErr(protocol.ErrInternal, err.Error())
	}
	id := s.Info().ID
	w.busy[a.ID] = id
	a.AddEvent(protocol.Event{
		"t":      w.CurrentTick(),
		"type":   "VEIN_STARTED",
		"run_id": id,
		"pos":    req.Pos.ToArray(),
	})
	return id, nil
}

// equip returns the tool used on a block of family. A usable main-hand tool of
// that family is kept; otherwise the best tool of the family in the inventory
// goes to the main hand and the previous one is stowed with its wear. With no
// tool of the family, a usable tool of another family is used as-is.
func (w *World) equip(a *Agent, family mining.ToolFamily) *mining.Tool {
	if a.MainHand != nil && !a.MainHand.Usable() {
		(&miner{w: w, a: a}).MarkToolBroken()
	}
	hand := a.MainHand
	if hand != nil && (family == mining.ToolFamilyNone || hand.Family == family) {
		return hand
	}
	item, _ := mining.BestTool(a.Inventory, family)
	if item == "" {
		return hand
	}
	t := a.takeStowed(item)
	if t == nil {
		var err error
		if t, err = w.catalogs.NewTool(item); err != nil {
			return hand
		}
	}
	if hand != nil {
		a.stow(hand)
	}
	a.MainHand = t
	return t
}

// hostObserver runs on the world loop goroutine.
type hostObserver struct{ w *World }

func (h hostObserver) RunStarted(info vein.RunInfo) {
	h.w.runs.RunStarted(info)
	if h.w.obs != nil {
		h.w.obs.RunStarted(info)
	}
}

func (h hostObserver) StepDone(info vein.RunInfo, rep vein.StepReport) {
	h.w.runs.StepDone(info, rep)
	if h.w.obs != nil {
		h.w.obs.StepDone(info, rep)
	}
}

func (h hostObserver) RunEnded(info vein.RunInfo, out vein.Outcome) {
	w := h.w
	w.runs.RunEnded(info, out)
	delete(w.busy, info.ActorID)
	if a := w.agents[info.ActorID]; a != nil {
		a.AddEvent(protocol.Event{
			"t":         w.CurrentTick(),
			"type":      "VEIN_ENDED",
			"run_id":    info.ID,
			"status":    string(out.Status),
			"reason":    out.Reason,
			"processed": out.Processed,
		})
	}
	if w.obs != nil {
		w.obs.RunEnded(info, out)
	}
}
