package mining

import "strings"

type ToolFamily int

const (
	ToolFamilyNone ToolFamily = iota
	ToolFamilyPickaxe
	ToolFamilyAxe
	ToolFamilyShovel
)

func (f ToolFamily) String() string {
	switch f {
	case ToolFamilyPickaxe:
		return "pickaxe"
	case ToolFamilyAxe:
		return "axe"
	case ToolFamilyShovel:
		return "shovel"
	default:
		return "none"
	}
}

func ParseToolFamily(s string) ToolFamily {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pickaxe":
		return ToolFamilyPickaxe
	case "axe":
		return ToolFamilyAxe
	case "shovel":
		return ToolFamilyShovel
	default:
		return ToolFamilyNone
	}
}

// MineToolFamilyForBlock is the fallback for blocks whose catalog entry does
// not name a tool family.
func MineToolFamilyForBlock(blockName string) ToolFamily {
	switch blockName {
	case "DIRT", "GRASS", "SAND", "GRAVEL", "CLAY":
		return ToolFamilyShovel
	case "LOG", "BIRCH_LOG", "PLANK":
		return ToolFamilyAxe
	default:
		// Default: treat everything else as "pickaxe preferred".
		return ToolFamilyPickaxe
	}
}

var tierPrefixes = []string{"", "WOOD", "STONE", "IRON"}

func toolItem(family ToolFamily, tier int) string {
	if family == ToolFamilyNone || tier <= 0 || tier >= len(tierPrefixes) {
		return ""
	}
	return tierPrefixes[tier] + "_" + strings.ToUpper(family.String())
}

// BestTool picks the highest tier tool of family present in inv.
func BestTool(inv map[string]int, family ToolFamily) (item string, tier int) {
	if len(inv) == 0 {
		return "", 0
	}
	for t := len(tierPrefixes) - 1; t > 0; t-- {
		name := toolItem(family, t)
		if name != "" && inv[name] > 0 {
			return name, t
		}
	}
	return "", 0
}

// DurabilityForTier is used when a tool definition carries no durability.
func DurabilityForTier(tier int) int {
	switch tier {
	case 3: // iron
		return 250
	case 2: // stone
		return 131
	case 1: // wood
		return 59
	default:
		return 0
	}
}

// WearFor is the durability a tool loses breaking one block that prefers
// blockFamily. The wrong family wears twice as fast.
func WearFor(blockFamily ToolFamily, t *Tool) int {
	if t == nil {
		return 0
	}
	if blockFamily == ToolFamilyNone || blockFamily == t.Family {
		return 1
	}
	return 2
}
