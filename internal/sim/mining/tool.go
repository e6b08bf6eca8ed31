package mining

import "fmt"

// Tool is a held tool with finite durability. MaxDurability == 0 means the
// tool never wears out.
type Tool struct {
	Item          string
	Family        ToolFamily
	Tier          int
	Durability    int
	MaxDurability int
	Broken        bool
}

func NewTool(item string, family ToolFamily, tier, maxDurability int) (*Tool, error) {
	if item == "" {
		return nil, fmt.Errorf("tool: empty item")
	}
	if tier <= 0 {
		return nil, fmt.Errorf("tool %s: tier must be positive", item)
	}
	if maxDurability < 0 {
		return nil, fmt.Errorf("tool %s: negative durability", item)
	}
	return &Tool{
		Item:          item,
		Family:        family,
		Tier:          tier,
		Durability:    maxDurability,
		MaxDurability: maxDurability,
	}, nil
}

func (t *Tool) Unbreakable() bool { return t.MaxDurability == 0 }

func (t *Tool) Usable() bool {
	if t == nil || t.Broken || t.Tier <= 0 {
		return false
	}
	return t.Unbreakable() || t.Durability > 0
}

func (t *Tool) Consume(wear int) {
	if t == nil || wear <= 0 || t.Unbreakable() {
		return
	}
	t.Durability -= wear
	if t.Durability < 0 {
		t.Durability = 0
	}
}
