package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"veinmine.ai/internal/sim/mining"
	"veinmine.ai/internal/sim/vein"
)

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID        string `json:"id"`
	Solid     bool   `json:"solid"`
	Breakable bool   `json:"breakable"`
	DropsItem string `json:"drops_item,omitempty"`
	// VeinGroup joins block ids mined together (e.g. IRON_ORE and DEEP_IRON_ORE).
	VeinGroup  string `json:"vein_group,omitempty"`
	ToolFamily string `json:"tool_family,omitempty"`
	// Effect is applied to the miner for EffectTicks after breaking the block.
	Effect      string `json:"effect,omitempty"`
	EffectTicks int    `json:"effect_ticks,omitempty"`
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"` // "BLOCK","TOOL","MATERIAL"
	ToolFamily string `json:"tool_family,omitempty"`
	Tier       int    `json:"tier,omitempty"`
	// Durability of 0 for a TOOL falls back to the tier default; -1 means unbreakable.
	Durability int `json:"durability,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	for _, d := range c.Blocks.Defs {
		if d.DropsItem == "" {
			continue
		}
		if _, ok := c.Items.Defs[d.DropsItem]; !ok {
			return nil, fmt.Errorf("blocks.json: %s drops unknown item %s", d.ID, d.DropsItem)
		}
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if d.Kind == "TOOL" && (d.Tier <= 0 || mining.ParseToolFamily(d.ToolFamily) == mining.ToolFamilyNone) {
			return fmt.Errorf("items.json: tool %s needs tier and tool_family", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func (c *Catalogs) BlockName(id uint16) string {
	if int(id) >= len(c.Blocks.Palette) {
		return ""
	}
	return c.Blocks.Palette[id]
}

func (c *Catalogs) BlockDef(id uint16) (BlockDef, bool) {
	d, ok := c.Blocks.Defs[c.BlockName(id)]
	return d, ok
}

// ToolFamilyFor returns the preferred tool family for a block.
func (c *Catalogs) ToolFamilyFor(id uint16) mining.ToolFamily {
	d, ok := c.BlockDef(id)
	if !ok {
		return mining.ToolFamilyNone
	}
	if f := mining.ParseToolFamily(d.ToolFamily); f != mining.ToolFamilyNone {
		return f
	}
	return mining.MineToolFamilyForBlock(d.ID)
}

// MatcherFor resolves the vein predicate for a seed block: every breakable
// block in the seed's vein group, or just the seed block when it has none.
func (c *Catalogs) MatcherFor(seed uint16) (vein.Matcher, error) {
	d, ok := c.BlockDef(seed)
	if !ok || d.ID == "AIR" {
		return nil, fmt.Errorf("no block at seed")
	}
	if !d.Breakable {
		return nil, fmt.Errorf("block %s is not breakable", d.ID)
	}
	if d.VeinGroup == "" {
		return vein.MatchBlocks(seed), nil
	}
	var ids []uint16
	for _, name := range c.Blocks.Palette {
		bd := c.Blocks.Defs[name]
		if bd.VeinGroup == d.VeinGroup && bd.Breakable {
			ids = append(ids, c.Blocks.Index[name])
		}
	}
	return vein.MatchBlocks(ids...), nil
}

// MatcherForNames matches an explicit list of block ids.
func (c *Catalogs) MatcherForNames(names []string) (vein.Matcher, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty block list")
	}
	ids := make([]uint16, 0, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		id, ok := c.Blocks.Index[n]
		if !ok {
			return nil, fmt.Errorf("unknown block %q", n)
		}
		if !c.Blocks.Defs[n].Breakable {
			return nil, fmt.Errorf("block %s is not breakable", n)
		}
		ids = append(ids, id)
	}
	return vein.MatchBlocks(ids...), nil
}

// NewTool builds a fresh tool instance for a TOOL item.
func (c *Catalogs) NewTool(item string) (*mining.Tool, error) {
	d, ok := c.Items.Defs[item]
	if !ok || d.Kind != "TOOL" {
		return nil, fmt.Errorf("%s is not a tool", item)
	}
	dur := d.Durability
	switch {
	case dur < 0:
		dur = 0
	case dur == 0:
		dur = mining.DurabilityForTier(d.Tier)
	}
	return mining.NewTool(d.ID, mining.ParseToolFamily(d.ToolFamily), d.Tier, dur)
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
