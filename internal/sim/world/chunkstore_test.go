package world

import "testing"

func testGen() WorldGen {
	return WorldGen{
		Seed: 7, BoundaryR: 64, MinY: -40, MaxY: 40,
		OreClusterGrid: 12, OreClusterRadius: 3, OreClusterProbPermille: 500, TreePermille: 50,
		Air: 0, Bedrock: 1, Stone: 2, Dirt: 3, Log: 4,
		CoalOre: 5, IronOre: 6, DeepIronOre: 7, CopperOre: 8, CrystalOre: 9,
	}
}

func TestChunkStoreDeterministic(t *testing.T) {
	a, b := NewChunkStore(testGen()), NewChunkStore(testGen())
	ores := 0
	for x := -20; x < 20; x++ {
		for y := -39; y < 0; y += 3 {
			p := Vec3i{X: x, Y: y, Z: x / 2}
			ga, gb := a.Get(p), b.Get(p)
			if ga != gb {
				t.Fatalf("block mismatch at %v: %d vs %d", p, ga, gb)
			}
			if ga >= 5 {
				ores++
			}
		}
	}
	if ores == 0 {
		t.Fatalf("expected some ore underground")
	}
}

func TestChunkStoreLayers(t *testing.T) {
	s := NewChunkStore(testGen())
	if got := s.Get(Vec3i{X: 3, Y: -40, Z: -3}); got != 1 {
		t.Fatalf("bedrock layer=%d", got)
	}
	if got := s.Get(Vec3i{X: 3, Y: 0, Z: -3}); got != 3 {
		t.Fatalf("surface=%d", got)
	}
	if got := s.Get(Vec3i{X: 3, Y: 20, Z: -3}); got != 0 {
		t.Fatalf("sky=%d", got)
	}
	if got := s.Get(Vec3i{X: 3, Y: -41, Z: -3}); got != 0 {
		t.Fatalf("below world=%d", got)
	}
	if got := s.Get(Vec3i{X: 65, Y: -5}); got != 0 {
		t.Fatalf("outside boundary=%d", got)
	}
}

func TestChunkStoreSetNegativeCoords(t *testing.T) {
	s := NewChunkStore(testGen())
	p := Vec3i{X: -1, Y: -17, Z: -16}
	if !s.Set(p, 9) {
		t.Fatalf("set in bounds failed")
	}
	if got := s.Get(p); got != 9 {
		t.Fatalf("get=%d want 9", got)
	}
	if s.Set(Vec3i{X: 100}, 9) {
		t.Fatalf("set outside boundary should fail")
	}
	k, _, _, _ := splitPos(p)
	if k != (ChunkKey{CX: -1, CY: -2, CZ: -1}) {
		t.Fatalf("chunk key=%+v", k)
	}
}

func TestChunkDigestTracksWrites(t *testing.T) {
	s := NewChunkStore(testGen())
	p := Vec3i{X: 2, Y: -2, Z: 2}
	s.Get(p)
	k, _, _, _ := splitPos(p)
	c := s.chunks[k]
	before := c.Digest()
	s.Set(p, 9)
	if c.Digest() == before {
		t.Fatalf("digest unchanged after write")
	}
	if s.LoadedChunks() != 1 {
		t.Fatalf("LoadedChunks=%d", s.LoadedChunks())
	}
}
