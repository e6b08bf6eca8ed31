package world

import (
	"testing"
	"time"

	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/mining"
	"veinmine.ai/internal/sim/tuning"
	"veinmine.ai/internal/sim/vein"
)

func TestSeedBreakWearsOutTool(t *testing.T) {
	w := newTestWorld(t, nil)
	iron := w.block("IRON_ORE")
	w.chunks.Set(Vec3i{Y: -10}, iron)
	w.chunks.Set(Vec3i{X: 1, Y: -10}, iron)

	a := joinAgent(t, w, map[string]int{"IRON_PICKAXE": 1})
	pick, err := w.catalogs.NewTool("IRON_PICKAXE")
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	pick.Durability = 1
	a.MainHand = pick

	_, err = w.handleVein(VeinRequest{AgentID: a.ID, Pos: Vec3i{Y: -10}})
	if got := errCode(err); got != protocol.ErrNoTool {
		t.Fatalf("code=%q want %q (err=%v)", got, protocol.ErrNoTool, err)
	}
	if w.chunks.Get(Vec3i{Y: -10}) != w.gen.Air || a.Inventory["IRON_ORE"] != 1 {
		t.Fatalf("seed not mined: inv=%v", a.Inventory)
	}
	if a.MainHand != nil || a.Inventory["IRON_PICKAXE"] != 0 || !pick.Broken {
		t.Fatalf("worn tool kept: hand=%+v inv=%v", a.MainHand, a.Inventory)
	}
	if _, busy := w.busy[a.ID]; busy || w.runner.Active() != 0 || w.runs.startedTotal() != 0 {
		t.Fatalf("run registered after the tool broke on the seed")
	}
	sawBroken := false
	for _, e := range a.Events {
		if e["type"] == "TOOL_BROKEN" {
			sawBroken = true
		}
	}
	if !sawBroken {
		t.Fatalf("missing TOOL_BROKEN event: %v", a.Events)
	}

	_, err = w.handleVein(VeinRequest{AgentID: a.ID, Pos: Vec3i{X: 1, Y: -10}})
	if got := errCode(err); got != protocol.ErrNoTool {
		t.Fatalf("second start code=%q want %q", got, protocol.ErrNoTool)
	}
	if w.chunks.Get(Vec3i{X: 1, Y: -10}) != iron {
		t.Fatalf("ore mined without a tool")
	}
}

func TestEquipDropsWornOutMainHand(t *testing.T) {
	w := newTestWorld(t, nil)
	a := joinAgent(t, w, map[string]int{"IRON_PICKAXE": 1, "STONE_PICKAXE": 1})
	worn, err := w.catalogs.NewTool("IRON_PICKAXE")
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	worn.Durability = 0
	a.MainHand = worn

	got := w.equip(a, mining.ToolFamilyPickaxe)
	if got == nil || got.Item != "STONE_PICKAXE" || got.Durability != 131 {
		t.Fatalf("equipped %+v", got)
	}
	if a.Inventory["IRON_PICKAXE"] != 0 || !worn.Broken {
		t.Fatalf("worn pickaxe still held: inv=%v", a.Inventory)
	}
}

func TestEquipSwitchesToBlockFamily(t *testing.T) {
	w := newTestWorld(t, nil)
	iron := w.block("IRON_ORE")
	w.chunks.Set(Vec3i{Y: -10}, iron)
	w.chunks.Set(Vec3i{X: 1, Y: -10}, iron)
	w.chunks.Set(Vec3i{X: 5, Y: 1, Z: 5}, w.block("LOG"))

	a := joinAgent(t, w, map[string]int{"WOOD_AXE": 1, "IRON_PICKAXE": 1})
	axe, err := w.catalogs.NewTool("WOOD_AXE")
	if err != nil {
		t.Fatalf("tool: %v", err)
	}
	axe.Durability = 40
	a.MainHand = axe

	runID, err := w.handleVein(VeinRequest{AgentID: a.ID, Pos: Vec3i{Y: -10}})
	if err != nil {
		t.Fatalf("start iron: %v", err)
	}
	if st := runUntilDone(t, w, runID); st.Status != string(vein.StatusCompleted) || st.Processed != 1 {
		t.Fatalf("iron run=%+v", st)
	}
	if a.MainHand == nil || a.MainHand.Item != "IRON_PICKAXE" || a.MainHand.Durability != 248 {
		t.Fatalf("main hand after iron=%+v", a.MainHand)
	}
	if s := a.Stowed["WOOD_AXE"]; s == nil || s.Durability != 40 {
		t.Fatalf("stowed axe=%+v", s)
	}

	// The axe comes back with its wear.
	runID, err = w.handleVein(VeinRequest{AgentID: a.ID, Pos: Vec3i{X: 5, Y: 1, Z: 5}})
	if err != nil {
		t.Fatalf("start log: %v", err)
	}
	if st := runUntilDone(t, w, runID); st.Status != string(vein.StatusCompleted) {
		t.Fatalf("log run=%+v", st)
	}
	if a.MainHand == nil || a.MainHand.Item != "WOOD_AXE" || a.MainHand.Durability != 39 {
		t.Fatalf("main hand after log=%+v", a.MainHand)
	}
	if s := a.Stowed["IRON_PICKAXE"]; s == nil || s.Durability != 248 {
		t.Fatalf("stowed pickaxe=%+v", s)
	}

	w2 := newTestWorld(t, nil)
	if err := w2.ImportSnapshot(w.ExportSnapshot()); err != nil {
		t.Fatalf("import: %v", err)
	}
	a2 := w2.agents[a.ID]
	if s := a2.Stowed["IRON_PICKAXE"]; s == nil || s.Durability != 248 {
		t.Fatalf("restored stowed pickaxe=%+v", s)
	}
	if a2.MainHand == nil || a2.MainHand.Durability != 39 {
		t.Fatalf("restored main hand=%+v", a2.MainHand)
	}
}

func TestConfigFromTuningTickInterval(t *testing.T) {
	tu := tuning.Defaults()
	tu.TickRateHz = 40
	if got := ConfigFromTuning("W", tu).TickInterval; got != 25*time.Millisecond {
		t.Fatalf("tick interval=%v", got)
	}
}
