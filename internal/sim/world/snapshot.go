package world

import (
	"fmt"
	"sort"

	"veinmine.ai/internal/persistence/snapshot"
	"veinmine.ai/internal/sim/encoding"
	"veinmine.ai/internal/sim/mining"
)

// ExportSnapshot captures edited chunks and agents. Runs in flight are not
// saved. Must not be called while Run is active.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.CurrentTick(),
		},
		Seed:          w.cfg.Seed,
		BoundaryR:     w.cfg.BoundaryR,
		MinY:          w.cfg.MinY,
		MaxY:          w.cfg.MaxY,
		PaletteDigest: w.catalogs.Blocks.PaletteDigest,
		NextAgentNum:  w.nextAgentNum,
		BlocksBroken:  w.blocksBroken,
	}
	for _, c := range w.chunks.EditedChunks() {
		s.Chunks = append(s.Chunks, snapshot.ChunkV1{
			Key: [3]int{c.Key.CX, c.Key.CY, c.Key.CZ},
			RLE: encoding.EncodeRLE(c.Blocks),
		})
	}

	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := w.agents[id]
		av := snapshot.AgentV1{
			ID:        a.ID,
			Name:      a.Name,
			Pos:       a.Pos.ToArray(),
			Inventory: map[string]int{},
		}
		for k, n := range a.Inventory {
			av.Inventory[k] = n
		}
		if a.MainHand != nil && !a.MainHand.Broken {
			av.MainHand = a.MainHand.Item
			av.Durability = a.MainHand.Durability
		}
		for item, t := range a.Stowed {
			if av.Stowed == nil {
				av.Stowed = map[string]int{}
			}
			av.Stowed[item] = t.Durability
		}
		if len(a.Effects) > 0 {
			av.Effects = map[string]int{}
			for k, n := range a.Effects {
				av.Effects[k] = n
			}
		}
		s.Agents = append(s.Agents, av)
	}
	return s
}

// ImportSnapshot restores a snapshot into a fresh world built with the same
// seed, bounds and block palette. Must be called before Run.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	switch {
	case s.Seed != w.cfg.Seed:
		return fmt.Errorf("snapshot seed %d does not match world seed %d", s.Seed, w.cfg.Seed)
	case s.BoundaryR != w.cfg.BoundaryR || s.MinY != w.cfg.MinY || s.MaxY != w.cfg.MaxY:
		return fmt.Errorf("snapshot bounds r=%d y=%d..%d do not match world", s.BoundaryR, s.MinY, s.MaxY)
	case s.PaletteDigest != w.catalogs.Blocks.PaletteDigest:
		return fmt.Errorf("snapshot block palette differs from configs")
	case len(w.agents) > 0:
		return fmt.Errorf("world already has agents")
	}

	const volume = chunkSize * chunkSize * chunkSize
	for _, c := range s.Chunks {
		blocks, err := encoding.DecodeRLE(c.RLE, volume)
		if err != nil {
			return fmt.Errorf("chunk %v: %w", c.Key, err)
		}
		for _, b := range blocks {
			if int(b) >= len(w.catalogs.Blocks.Palette) {
				return fmt.Errorf("chunk %v: block id %d outside palette", c.Key, b)
			}
		}
		w.chunks.restore(ChunkKey{CX: c.Key[0], CY: c.Key[1], CZ: c.Key[2]}, blocks)
	}

	for _, av := range s.Agents {
		a := &Agent{
			ID:        av.ID,
			Name:      av.Name,
			Pos:       Vec3i{X: av.Pos[0], Y: av.Pos[1], Z: av.Pos[2]},
			Inventory: map[string]int{},
			Effects:   map[string]int{},
		}
		for k, n := range av.Inventory {
			if n > 0 {
				a.Inventory[k] = n
			}
		}
		for k, n := range av.Effects {
			a.Effects[k] = n
		}
		if av.MainHand != "" {
			t, err := w.restoreTool(av.MainHand, av.Durability)
			if err != nil {
				return fmt.Errorf("agent %s: %w", av.ID, err)
			}
			a.MainHand = t
		}
		for item, dur := range av.Stowed {
			t, err := w.restoreTool(item, dur)
			if err != nil {
				return fmt.Errorf("agent %s: stowed %w", av.ID, err)
			}
			a.stow(t)
		}
		w.agents[a.ID] = a
	}
	w.nextAgentNum = s.NextAgentNum
	w.blocksBroken = s.BlocksBroken
	w.publishMetrics(0)
	return nil
}

func (w *World) restoreTool(item string, durability int) (*mining.Tool, error) {
	t, err := w.catalogs.NewTool(item)
	if err != nil {
		return nil, err
	}
	if !t.Unbreakable() {
		t.Durability = durability
	}
	return t, nil
}
