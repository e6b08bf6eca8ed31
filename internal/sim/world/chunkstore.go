package world

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

const chunkSize = 16

type ChunkKey struct {
	CX, CY, CZ int
}

type Chunk struct {
	Key    ChunkKey
	Blocks []uint16 // len = 16*16*16; x fastest, then z, then y

	dirty bool
	hash  [32]byte
	// edited is set once the chunk diverges from worldgen output.
	edited bool
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*chunkSize + y*chunkSize*chunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
	c.edited = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen struct {
	Seed      int64
	BoundaryR int // blocks; 0 = unbounded
	MinY      int // bedrock layer
	MaxY      int

	OreClusterGrid         int
	OreClusterRadius       int
	OreClusterProbPermille int
	TreePermille           int

	// Palette ids for core blocks.
	Air         uint16
	Bedrock     uint16
	Stone       uint16
	Dirt        uint16
	Log         uint16
	CoalOre     uint16
	IronOre     uint16
	DeepIronOre uint16
	CopperOre   uint16
	CrystalOre  uint16
}

// ChunkStore is a sparse, lazily generated voxel volume. Accessed only from
// the world loop goroutine.
type ChunkStore struct {
	gen    WorldGen
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{
		gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) InBounds(pos Vec3i) bool {
	if pos.Y < s.gen.MinY || pos.Y > s.gen.MaxY {
		return false
	}
	if r := s.gen.BoundaryR; r > 0 && (absInt(pos.X) > r || absInt(pos.Z) > r) {
		return false
	}
	return true
}

func splitPos(pos Vec3i) (ChunkKey, int, int, int) {
	k := ChunkKey{
		CX: floorDiv(pos.X, chunkSize),
		CY: floorDiv(pos.Y, chunkSize),
		CZ: floorDiv(pos.Z, chunkSize),
	}
	return k, mod(pos.X, chunkSize), mod(pos.Y, chunkSize), mod(pos.Z, chunkSize)
}

// Get returns the block at pos. Cells outside the world read as air.
func (s *ChunkStore) Get(pos Vec3i) uint16 {
	if !s.InBounds(pos) {
		return s.gen.Air
	}
	k, x, y, z := splitPos(pos)
	return s.getOrGen(k).Get(x, y, z)
}

func (s *ChunkStore) Set(pos Vec3i, b uint16) bool {
	if !s.InBounds(pos) {
		return false
	}
	k, x, y, z := splitPos(pos)
	s.getOrGen(k).Set(x, y, z, b)
	return true
}

func (s *ChunkStore) LoadedChunks() int { return len(s.chunks) }

// EditedChunks returns chunks changed since generation, ordered by key.
func (s *ChunkStore) EditedChunks() []*Chunk {
	var out []*Chunk
	for _, c := range s.chunks {
		if c.edited {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.CX != b.CX {
			return a.CX < b.CX
		}
		if a.CY != b.CY {
			return a.CY < b.CY
		}
		return a.CZ < b.CZ
	})
	return out
}

// restore installs a chunk loaded from a snapshot in place of worldgen.
func (s *ChunkStore) restore(k ChunkKey, blocks []uint16) {
	s.chunks[k] = &Chunk{Key: k, Blocks: blocks, dirty: true, edited: true}
}

func (s *ChunkStore) getOrGen(k ChunkKey) *Chunk {
	if c, ok := s.chunks[k]; ok {
		return c
	}
	c := &Chunk{Key: k, Blocks: make([]uint16, chunkSize*chunkSize*chunkSize)}
	for ly := 0; ly < chunkSize; ly++ {
		for lz := 0; lz < chunkSize; lz++ {
			for lx := 0; lx < chunkSize; lx++ {
				wx := k.CX*chunkSize + lx
				wy := k.CY*chunkSize + ly
				wz := k.CZ*chunkSize + lz
				c.Blocks[c.index(lx, ly, lz)] = s.gen.blockAt(wx, wy, wz)
			}
		}
	}
	c.dirty = true
	s.chunks[k] = c
	return c
}

const (
	saltTree    = 0x7431
	saltCoal    = 0xc0a1
	saltIron    = 0x1f0e
	saltCopper  = 0xc0ff
	saltCrystal = 0xc7a5
)

// blockAt is the generated block before any mutation. Surface at y=0 is dirt,
// with occasional log columns above it; stone with clustered ore below.
func (g WorldGen) blockAt(x, y, z int) uint16 {
	switch {
	case y == g.MinY:
		return g.Bedrock
	case y > 0:
		if y <= 4 && g.TreePermille > 0 && hash2(g.Seed^saltTree, x, z)%1000 < uint64(g.TreePermille) {
			return g.Log
		}
		return g.Air
	case y == 0:
		return g.Dirt
	}

	prob := uint64(g.OreClusterProbPermille)
	grid, r := g.OreClusterGrid, g.OreClusterRadius
	if y < -40 && inCluster3(g.Seed^saltCrystal, x, y, z, grid, r-1, prob/4) {
		return g.CrystalOre
	}
	if inCluster3(g.Seed^saltIron, x, y, z, grid, r, prob/2) {
		if y < -32 {
			return g.DeepIronOre
		}
		return g.IronOre
	}
	if inCluster3(g.Seed^saltCopper, x, y, z, grid, r, prob/2) {
		return g.CopperOre
	}
	if inCluster3(g.Seed^saltCoal, x, y, z, grid, r+1, prob) {
		return g.CoalOre
	}
	return g.Stone
}
