package vein

import (
	"errors"
	"testing"
)

func TestPipeline_ToolBreaksMidBatchStillCommits(t *testing.T) {
	g := newMapGrid()
	cells := line(6)[1:]
	g.set(ore, cells...)
	tool := &testTool{durability: 3}
	actor := &testActor{id: "A1"}
	p := NewPipeline(actor, tool, g.destroy)

	err := p.DestroyBatch(cells)
	if !errors.Is(err, ErrToolUnavailable) {
		t.Fatalf("err=%v want ErrToolUnavailable", err)
	}
	for _, c := range cells {
		if g.blocks[c] != air {
			t.Fatalf("cell %v not destroyed", c)
		}
	}
	if len(actor.granted) != len(cells) {
		t.Fatalf("granted=%d want %d", len(actor.granted), len(cells))
	}
	if p.Processed() != int64(len(cells)) || p.Destroyed() != int64(len(cells)) {
		t.Fatalf("processed=%d destroyed=%d", p.Processed(), p.Destroyed())
	}
	if actor.returned != 1 || !actor.broken {
		t.Fatalf("returned=%d broken=%v", actor.returned, actor.broken)
	}
}

func TestPipeline_UnusableToolDestroysNothing(t *testing.T) {
	g := newMapGrid()
	g.set(ore, Vec3i{X: 1})
	actor := &testActor{id: "A1"}
	p := NewPipeline(actor, &testTool{durability: 0}, g.destroy)

	if err := p.DestroyBatch([]Vec3i{{X: 1}}); !errors.Is(err, ErrToolUnavailable) {
		t.Fatalf("err=%v", err)
	}
	if g.blocks[Vec3i{X: 1}] != ore || p.Processed() != 0 || actor.returned != 0 {
		t.Fatalf("destruction happened with an unusable tool")
	}

	var nilTool Tool
	if err := NewPipeline(actor, nilTool, g.destroy).DestroyBatch([]Vec3i{{X: 1}}); !errors.Is(err, ErrToolUnavailable) {
		t.Fatalf("nil tool err=%v", err)
	}
}

func TestPipeline_AffectionsAppliedInOrder(t *testing.T) {
	var order []string
	destroy := func(pos Vec3i, _ DestroyOptions) (DestroyResult, error) {
		return DestroyResult{
			Success: true,
			Yields: []Affection{
				ItemGrant{Item: "ITEM", Count: pos.X},
				EffectGrant{Name: "HASTE", Ticks: 20},
			},
		}, nil
	}
	actor := &testActor{id: "A1"}
	tool := &testTool{unbreak: true}
	p := NewPipeline(actor, tool, func(pos Vec3i, opt DestroyOptions) (DestroyResult, error) {
		if opt.Tool != Tool(tool) || opt.Actor != Actor(actor) {
			t.Fatalf("options not forwarded")
		}
		// Nothing may be applied before the batch ends.
		if len(actor.granted) != 0 {
			t.Fatalf("affection applied mid-batch")
		}
		order = append(order, "destroy")
		return destroy(pos, opt)
	})

	if err := p.DestroyBatch([]Vec3i{{X: 1}, {X: 2}}); err != nil {
		t.Fatalf("DestroyBatch: %v", err)
	}
	if got := len(actor.granted); got != 3 {
		t.Fatalf("granted=%d want 3", got)
	}
	if len(actor.effects) != 2 || len(order) != 2 {
		t.Fatalf("effects=%v order=%v", actor.effects, order)
	}
	if tool.consumed != 0 {
		t.Fatalf("zero-wear results consumed durability: %d", tool.consumed)
	}
}

func TestPipeline_FailedDestroyChargesNothing(t *testing.T) {
	g := newMapGrid()
	tool := &testTool{durability: 10}
	p := NewPipeline(&testActor{id: "A1"}, tool, g.destroy)

	// Unset cells are stone in the grid but unknown to destroy: Success=false.
	if err := p.DestroyBatch([]Vec3i{{X: 5}, {X: 6}}); err != nil {
		t.Fatalf("DestroyBatch: %v", err)
	}
	if tool.consumed != 0 || p.Destroyed() != 0 {
		t.Fatalf("consumed=%d destroyed=%d", tool.consumed, p.Destroyed())
	}
	if p.Processed() != 2 {
		t.Fatalf("processed=%d want 2", p.Processed())
	}
}

func TestPipeline_UnexpectedFailurePropagatesUnchanged(t *testing.T) {
	boom := errors.New("world unloaded")
	calls := 0
	actor := &testActor{id: "A1"}
	p := NewPipeline(actor, &testTool{unbreak: true}, func(Vec3i, DestroyOptions) (DestroyResult, error) {
		calls++
		if calls == 2 {
			return DestroyResult{}, boom
		}
		return DestroyResult{Success: true, Yields: []Affection{ItemGrant{Item: "ORE", Count: 1}}}, nil
	})

	err := p.DestroyBatch(line(4))
	if err != boom {
		t.Fatalf("err=%v want the original error", err)
	}
	if calls != 2 {
		t.Fatalf("batch continued after failure: calls=%d", calls)
	}
	if p.Processed() != 1 || len(actor.granted) != 1 || actor.returned != 1 {
		t.Fatalf("partial commit mismatch: processed=%d granted=%v returned=%d", p.Processed(), actor.granted, actor.returned)
	}
}
