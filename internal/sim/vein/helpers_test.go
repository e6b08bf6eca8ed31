package vein

import (
	"sort"
	"sync"
	"time"
)

const (
	air   uint16 = 0
	stone uint16 = 1
	ore   uint16 = 2
)

// mapGrid is a sparse test world; unset cells are stone.
type mapGrid struct {
	blocks map[Vec3i]uint16
	probes map[Vec3i]int
}

func newMapGrid() *mapGrid {
	return &mapGrid{blocks: map[Vec3i]uint16{}, probes: map[Vec3i]int{}}
}

func (g *mapGrid) set(b uint16, ps ...Vec3i) {
	for _, p := range ps {
		g.blocks[p] = b
	}
}

func (g *mapGrid) BlockAt(p Vec3i) uint16 {
	g.probes[p]++
	if b, ok := g.blocks[p]; ok {
		return b
	}
	return stone
}

func (g *mapGrid) destroy(p Vec3i, _ DestroyOptions) (DestroyResult, error) {
	b, ok := g.blocks[p]
	if !ok || b == air {
		return DestroyResult{}, nil
	}
	g.blocks[p] = air
	return DestroyResult{
		Success: true,
		Yields:  []Affection{ItemGrant{Item: "ORE", Count: 1}},
		Wear:    1,
	}, nil
}

func line(n int) []Vec3i {
	out := make([]Vec3i, n)
	for i := range out {
		out[i] = Vec3i{X: i}
	}
	return out
}

func sortedCells(ps []Vec3i) []Vec3i {
	out := append([]Vec3i(nil), ps...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}

type testTool struct {
	durability int
	unbreak    bool
	consumed   int
}

func (t *testTool) Usable() bool { return t.unbreak || t.durability > 0 }

func (t *testTool) Consume(wear int) {
	t.consumed += wear
	if !t.unbreak {
		t.durability -= wear
	}
}

type testActor struct {
	id       string
	granted  []string
	effects  []string
	returned int
	broken   bool
}

func (a *testActor) ID() string                     { return a.id }
func (a *testActor) ReturnTool(Tool)                { a.returned++ }
func (a *testActor) MarkToolBroken()                { a.broken = true }
func (a *testActor) ApplyEffect(name string, _ int) { a.effects = append(a.effects, name) }

func (a *testActor) Grant(item string, count int) {
	for i := 0; i < count; i++ {
		a.granted = append(a.granted, item)
	}
}

// fakeNow is a manually advanced wall clock.
type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeNow() *fakeNow { return &fakeNow{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeNow) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeNow) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// stepCounter is a manually advanced StepClock.
type stepCounter struct{ n uint64 }

func (s *stepCounter) CurrentStep() uint64 { return s.n }

type recordingObserver struct {
	started int
	steps   []StepReport
	ended   []Outcome
}

func (r *recordingObserver) RunStarted(RunInfo)                 { r.started++ }
func (r *recordingObserver) StepDone(_ RunInfo, rep StepReport) { r.steps = append(r.steps, rep) }
func (r *recordingObserver) RunEnded(_ RunInfo, out Outcome)    { r.ended = append(r.ended, out) }
