package vein

// Grid resolves the block type at a coordinate.
type Grid interface {
	BlockAt(pos Vec3i) uint16
}

// GridFunc adapts a function to Grid.
type GridFunc func(pos Vec3i) uint16

func (f GridFunc) BlockAt(pos Vec3i) uint16 { return f(pos) }

// Matcher reports whether a block type belongs to the vein.
type Matcher func(block uint16) bool

// MatchBlocks matches any of the given block ids.
func MatchBlocks(ids ...uint16) Matcher {
	set := make(map[uint16]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(block uint16) bool {
		_, ok := set[block]
		return ok
	}
}

// Source hands out connected cells in bounded batches.
type Source interface {
	Next(max int) []Vec3i
	HasMore() bool
}

// Traversal is a breadth-first walk over the 6-connected component of
// matching cells around a seed. The seed itself is expanded but never
// returned.
//
// Every probed coordinate is recorded in the visited set the first time it is
// seen, matching or not, so no cell is probed twice.
type Traversal struct {
	grid    Grid
	match   Matcher
	visited *VisitedSet

	// pending[head:] is the FIFO of cells awaiting expansion. The head cell
	// stays queued until all 6 of its neighbors are probed; dir is the next
	// neighbor index to probe for it.
	pending []Vec3i
	head    int
	dir     int
}

func NewTraversal(grid Grid, match Matcher, seed Vec3i) *Traversal {
	t := &Traversal{
		grid:    grid,
		match:   match,
		visited: NewVisitedSet(),
	}
	t.visited.Add(seed)
	t.pending = append(t.pending, seed)
	return t
}

func (t *Traversal) HasMore() bool { return t.head < len(t.pending) }

// Visited returns how many coordinates have been probed, including the seed
// and the non-matching boundary.
func (t *Traversal) Visited() int { return t.visited.Len() }

// Next returns up to max newly discovered matching cells. It returns fewer
// (possibly none) once the component is exhausted.
func (t *Traversal) Next(max int) []Vec3i {
	if max <= 0 {
		return nil
	}
	out := make([]Vec3i, 0, minInt(max, 64))
	for len(out) < max && t.HasMore() {
		cur := t.pending[t.head]
		nbrs := cur.Neighbors()
		for t.dir < len(nbrs) && len(out) < max {
			n := nbrs[t.dir]
			t.dir++
			if !t.visited.Add(n) {
				continue
			}
			if t.match(t.grid.BlockAt(n)) {
				out = append(out, n)
				t.pending = append(t.pending, n)
			}
		}
		if t.dir == len(nbrs) {
			t.pop()
		}
	}
	return out
}

func (t *Traversal) pop() {
	t.head++
	t.dir = 0
	if t.head == len(t.pending) {
		t.pending = t.pending[:0]
		t.head = 0
		return
	}
	// Reclaim the drained prefix once it dominates the backing array.
	if t.head >= 1024 && t.head*2 >= len(t.pending) {
		n := copy(t.pending, t.pending[t.head:])
		t.pending = t.pending[:n]
		t.head = 0
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
