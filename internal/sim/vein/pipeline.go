package vein

import (
	"errors"
	"sync/atomic"
)

// ErrToolUnavailable means the actor's tool cannot destroy any more cells.
var ErrToolUnavailable = errors.New("vein: tool unavailable")

// Tool is the consumable resource that gates destruction.
type Tool interface {
	Usable() bool
	Consume(wear int)
}

// Actor is the entity performing the run and receiving its yields.
type Actor interface {
	ID() string
	ReturnTool(t Tool)
	MarkToolBroken()
	Grant(item string, count int)
	ApplyEffect(name string, ticks int)
}

// Affection is a side effect of destroying one cell, applied to the actor
// after its batch.
type Affection interface {
	Apply(a Actor)
}

type ItemGrant struct {
	Item  string
	Count int
}

func (g ItemGrant) Apply(a Actor) {
	if g.Item == "" || g.Count <= 0 {
		return
	}
	a.Grant(g.Item, g.Count)
}

type EffectGrant struct {
	Name  string
	Ticks int
}

func (g EffectGrant) Apply(a Actor) {
	if g.Name == "" {
		return
	}
	a.ApplyEffect(g.Name, g.Ticks)
}

type DestroyOptions struct {
	Tool  Tool
	Actor Actor
}

type DestroyResult struct {
	Success bool
	Yields  []Affection
	// Wear is charged to the tool when Success is set.
	Wear int
}

// DestroyFunc is the host's world-mutation capability.
type DestroyFunc func(pos Vec3i, opt DestroyOptions) (DestroyResult, error)

// Pipeline destroys batches of cells with one actor's tool.
type Pipeline struct {
	actor   Actor
	tool    Tool
	destroy DestroyFunc

	processed atomic.Int64
	destroyed atomic.Int64
}

func NewPipeline(actor Actor, tool Tool, destroy DestroyFunc) *Pipeline {
	return &Pipeline{actor: actor, tool: tool, destroy: destroy}
}

// Processed counts cells handed to DestroyBatch and committed.
func (p *Pipeline) Processed() int64 { return p.processed.Load() }

// Destroyed counts cells the world reported as actually destroyed.
func (p *Pipeline) Destroyed() int64 { return p.destroyed.Load() }

// DestroyBatch destroys every cell in the batch, then returns the tool to the
// actor and applies the collected affections in order. A tool that wears out
// during the batch does not stop it; the batch is committed and
// ErrToolUnavailable is returned afterwards.
//
// An error from the world stops the batch at the failing cell; cells destroyed
// before it are committed and the error is returned unchanged.
func (p *Pipeline) DestroyBatch(cells []Vec3i) error {
	if p.tool == nil || !p.tool.Usable() {
		return ErrToolUnavailable
	}

	opt := DestroyOptions{Tool: p.tool, Actor: p.actor}
	var affs []Affection
	var failed error
	n := 0
	for _, pos := range cells {
		res, err := p.destroy(pos, opt)
		if err != nil {
			failed = err
			break
		}
		n++
		if !res.Success {
			continue
		}
		p.destroyed.Add(1)
		affs = append(affs, res.Yields...)
		if res.Wear > 0 {
			p.tool.Consume(res.Wear)
		}
	}

	p.actor.ReturnTool(p.tool)
	for _, a := range affs {
		a.Apply(p.actor)
	}
	p.processed.Add(int64(n))

	if failed != nil {
		return failed
	}
	if !p.tool.Usable() {
		p.actor.MarkToolBroken()
		return ErrToolUnavailable
	}
	return nil
}
