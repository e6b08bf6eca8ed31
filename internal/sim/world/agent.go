package world

import (
	"sort"

	"veinmine.ai/internal/protocol"
	"veinmine.ai/internal/sim/mining"
)

const maxAgentEvents = 64

type Agent struct {
	ID   string
	Name string
	Pos  Vec3i

	Inventory map[string]int
	// MainHand is the live tool instance; its item is also counted in Inventory.
	MainHand *mining.Tool
	// Stowed keeps worn tools put away by equip, one per item.
	Stowed map[string]*mining.Tool
	// Effects maps effect name to remaining ticks.
	Effects map[string]int

	Events []protocol.Event
}

func (a *Agent) AddEvent(e protocol.Event) {
	a.Events = append(a.Events, e)
	if n := len(a.Events) - maxAgentEvents; n > 0 {
		a.Events = append(a.Events[:0], a.Events[n:]...)
	}
}

func (a *Agent) stow(t *mining.Tool) {
	if t.Unbreakable() || t.Durability == t.MaxDurability {
		return
	}
	if a.Stowed == nil {
		a.Stowed = map[string]*mining.Tool{}
	}
	a.Stowed[t.Item] = t
}

// takeStowed returns the stowed instance of item, if the inventory still
// holds one.
func (a *Agent) takeStowed(item string) *mining.Tool {
	t := a.Stowed[item]
	if t == nil {
		return nil
	}
	delete(a.Stowed, item)
	if a.Inventory[item] <= 0 || !t.Usable() {
		return nil
	}
	return t
}

func (a *Agent) tickEffects() {
	for name, left := range a.Effects {
		if left <= 1 {
			delete(a.Effects, name)
			continue
		}
		a.Effects[name] = left - 1
	}
}

func (a *Agent) removeItem(item string, n int) {
	if a.Inventory[item] <= n {
		delete(a.Inventory, item)
		return
	}
	a.Inventory[item] -= n
}

// AgentView is a copy of agent state safe to hand out of the world loop.
type AgentView struct {
	ID         string           `json:"agent_id"`
	Name       string           `json:"name"`
	Pos        [3]int           `json:"pos"`
	Inventory  map[string]int   `json:"inventory"`
	MainHand   string           `json:"main_hand,omitempty"`
	Durability int              `json:"durability,omitempty"`
	Effects    []string         `json:"effects,omitempty"`
	Events     []protocol.Event `json:"events,omitempty"`
	ActiveRun  string           `json:"active_run,omitempty"`
}

func (a *Agent) view(activeRun string) AgentView {
	v := AgentView{
		ID:        a.ID,
		Name:      a.Name,
		Pos:       a.Pos.ToArray(),
		Inventory: make(map[string]int, len(a.Inventory)),
		Events:    append([]protocol.Event(nil), a.Events...),
		ActiveRun: activeRun,
	}
	for k, n := range a.Inventory {
		v.Inventory[k] = n
	}
	if a.MainHand != nil {
		v.MainHand = a.MainHand.Item
		v.Durability = a.MainHand.Durability
	}
	for name := range a.Effects {
		v.Effects = append(v.Effects, name)
	}
	sort.Strings(v.Effects)
	return v
}
