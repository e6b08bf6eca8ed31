package world

import (
	"path/filepath"
	"strings"
	"testing"

	"veinmine.ai/internal/persistence/snapshot"
	"veinmine.ai/internal/sim/vein"
)

func TestSnapshotRestoresMinedWorld(t *testing.T) {
	w := newTestWorld(t, nil)
	iron := w.block("IRON_ORE")
	for x := 0; x < 4; x++ {
		w.chunks.Set(Vec3i{X: x, Y: -20}, iron)
	}
	a := joinAgent(t, w, map[string]int{"STONE_PICKAXE": 1})
	a.Effects["GLOW"] = 30
	runID, err := w.handleVein(VeinRequest{AgentID: a.ID, Pos: Vec3i{Y: -20}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := runUntilDone(t, w, runID); st.Status != string(vein.StatusCompleted) {
		t.Fatalf("status=%+v", st)
	}

	path := filepath.Join(t.TempDir(), snapshot.FileName(w.CurrentTick()))
	if err := snapshot.WriteSnapshot(path, w.ExportSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(snap.Chunks) == 0 || len(snap.Agents) != 1 {
		t.Fatalf("chunks=%d agents=%d", len(snap.Chunks), len(snap.Agents))
	}

	w2 := newTestWorld(t, func(c *WorldConfig) { c.StartTick = snap.Header.Tick })
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if w2.CurrentTick() != w.CurrentTick() {
		t.Fatalf("tick=%d want %d", w2.CurrentTick(), w.CurrentTick())
	}
	for x := 0; x < 4; x++ {
		if b := w2.chunks.Get(Vec3i{X: x, Y: -20}); b != w2.gen.Air {
			t.Fatalf("x=%d block=%d, want air", x, b)
		}
	}
	a2 := w2.agents[a.ID]
	if a2 == nil || a2.Inventory["IRON_ORE"] != 4 || a2.Effects["GLOW"] == 0 {
		t.Fatalf("agent=%+v", a2)
	}
	if a2.MainHand == nil || a2.MainHand.Durability != a.MainHand.Durability {
		t.Fatalf("main hand=%+v want durability %d", a2.MainHand, a.MainHand.Durability)
	}
	if w2.Metrics().BlocksBroken != 4 {
		t.Fatalf("blocks broken=%d", w2.Metrics().BlocksBroken)
	}

	// New agents continue the id sequence.
	id, err := w2.handleJoin(JoinRequest{Pos: Vec3i{Y: 1}})
	if err != nil || id != "A2" {
		t.Fatalf("join id=%q err=%v", id, err)
	}
}

func TestImportSnapshotRejectsMismatch(t *testing.T) {
	w := newTestWorld(t, nil)
	snap := w.ExportSnapshot()

	other := newTestWorld(t, func(c *WorldConfig) { c.Seed = 43 })
	if err := other.ImportSnapshot(snap); err == nil || !strings.Contains(err.Error(), "seed") {
		t.Fatalf("seed mismatch err=%v", err)
	}

	bad := snap
	bad.PaletteDigest = "nope"
	if err := newTestWorld(t, nil).ImportSnapshot(bad); err == nil {
		t.Fatalf("expected palette error")
	}

	bad = snap
	bad.Chunks = []snapshot.ChunkV1{{Key: [3]int{0, 0, 0}, RLE: []byte{1, 2}}}
	if err := newTestWorld(t, nil).ImportSnapshot(bad); err == nil {
		t.Fatalf("expected chunk length error")
	}
}
