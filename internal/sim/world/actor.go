package world

import (
	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/mining"
	"veinmine.ai/internal/sim/vein"
)

// miner exposes an agent to vein runs.
type miner struct {
	w *World
	a *Agent
}

var _ vein.Actor = (*miner)(nil)

func (m *miner) ID() string { return m.a.ID }

func (m *miner) ReturnTool(t vein.Tool) {
	if tool, ok := t.(*mining.Tool); ok {
		m.a.MainHand = tool
	}
}

func (m *miner) MarkToolBroken() {
	t := m.a.MainHand
	if t == nil {
		return
	}
	t.Broken = true
	m.a.removeItem(t.Item, 1)
	m.a.MainHand = nil
	m.a.AddEvent(protocol.Event{
		"t":    m.w.CurrentTick(),
		"type": "TOOL_BROKEN",
		"item": t.Item,
	})
}

func (m *miner) Grant(item string, count int) {
	if m.a.Inventory == nil {
		m.a.Inventory = map[string]int{}
	}
	m.a.Inventory[item] += count
}

func (m *miner) ApplyEffect(name string, ticks int) {
	if m.a.Effects == nil {
		m.a.Effects = map[string]int{}
	}
	if ticks > m.a.Effects[name] {
		m.a.Effects[name] = ticks
	}
}
