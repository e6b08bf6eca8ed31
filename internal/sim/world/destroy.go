package world

import (
	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/mining"
	"veinmine.ai/internal/sim/vein"
)

// destroyBlock breaks one block with the run's tool. Air and unbreakable
// blocks are skipped without wear.
func (w *World) destroyBlock(pos Vec3i, opt vein.DestroyOptions) (vein.DestroyResult, error) {
	b := w.chunks.Get(pos)
	def, ok := w.catalogs.BlockDef(b)
	if !ok || b == w.gen.Air || !def.Breakable {
		return vein.DestroyResult{}, nil
	}
	if !w.chunks.Set(pos, w.gen.Air) {
		return vein.DestroyResult{}, nil
	}
	w.blocksBroken++

	res := vein.DestroyResult{Success: true, Wear: 1}
	if t, ok := opt.Tool.(*mining.Tool); ok {
		res.Wear = mining.WearFor(w.catalogs.ToolFamilyFor(b), t)
	}
	if def.DropsItem != "" {
		res.Yields = append(res.Yields, vein.ItemGrant{Item: def.DropsItem, Count: 1})
	}
	if def.Effect != "" {
		res.Yields = append(res.Yields, vein.EffectGrant{Name: def.Effect, Ticks: def.EffectTicks})
	}
	return res, nil
}

// breakSeed breaks the block the agent aimed at, outside of any run, the way a
// single mining action would. It reports whether the tool is still usable; a
// tool worn out by the seed is marked broken.
func (w *World) breakSeed(a *Agent, pos Vec3i, tool *mining.Tool) (bool, error) {
	m := &miner{w: w, a: a}
	res, err := w.destroyBlock(pos, vein.DestroyOptions{Tool: tool, Actor: m})
	if err != nil {
		return false, err
	}
	if res.Success {
		tool.Consume(res.Wear)
		for _, y := range res.Yields {
			y.Apply(m)
		}
		a.AddEvent(protocol.Event{
			"t":    w.CurrentTick(),
			"type": "BLOCK_BROKEN",
			"pos":  pos.ToArray(),
		})
	}
	if !tool.Usable() {
		m.MarkToolBroken()
		return false, nil
	}
	return true, nil
}
