package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"veinmine.ai/internal/sim/vein"
)

//go:embed tuning.schema.json
var schemaJSON string

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	Vein  VeinTuning  `yaml:"vein"`
	World WorldTuning `yaml:"world"`
}

type VeinTuning struct {
	PerTickBudgetMs float64 `yaml:"per_tick_budget_ms"`
	MaxBatch        int     `yaml:"max_batch"`
	MinBatch        int     `yaml:"min_batch"`
	BatchStep       int     `yaml:"batch_step"`
	AutoAdjust      bool    `yaml:"auto_adjust"`
	MaxActiveRuns   int     `yaml:"max_active_runs"`
}

type WorldTuning struct {
	Seed      int64 `yaml:"seed"`
	BoundaryR int   `yaml:"boundary_r"` // blocks; 0 = unbounded
	MinY      int   `yaml:"min_y"`
	MaxY      int   `yaml:"max_y"`

	OreClusterGrid         int `yaml:"ore_cluster_grid"`
	OreClusterRadius       int `yaml:"ore_cluster_radius"`
	OreClusterProbPermille int `yaml:"ore_cluster_prob_permille"`
	TreePermille           int `yaml:"tree_permille"`

	// RecentRuns bounds how many finished runs stay queryable by id.
	RecentRuns int `yaml:"recent_runs"`
}

func Defaults() Tuning {
	p := vein.DefaultPacing()
	return Tuning{
		TickRateHz: 20,
		Vein: VeinTuning{
			PerTickBudgetMs: float64(p.Budget) / float64(time.Millisecond),
			MaxBatch:        p.MaxBatch,
			MinBatch:        p.MinBatch,
			BatchStep:       p.BatchStep,
			AutoAdjust:      p.AutoAdjust,
			MaxActiveRuns:   64,
		},
		World: WorldTuning{
			Seed:                   1337,
			BoundaryR:              4000,
			MinY:                   -64,
			MaxY:                   64,
			OreClusterGrid:         24,
			OreClusterRadius:       3,
			OreClusterProbPermille: 350,
			TreePermille:           6,
			RecentRuns:             256,
		},
	}
}

// Load reads path over Defaults(). The file is checked against the embedded
// schema before it is decoded.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := Validate(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.check(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Validate checks a YAML document against the tuning schema.
func Validate(raw []byte) error {
	schema, err := jsonschema.CompileString("tuning.schema.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so numbers and maps take the shapes the
	// validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

func (t Tuning) check() error {
	var errs []string
	if t.Vein.MinBatch > t.Vein.MaxBatch {
		errs = append(errs, "vein.min_batch > vein.max_batch")
	}
	if t.World.MinY > t.World.MaxY {
		errs = append(errs, "world.min_y > world.max_y")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func (t Tuning) TickInterval() time.Duration {
	if t.TickRateHz <= 0 {
		return time.Second / 20
	}
	return time.Second / time.Duration(t.TickRateHz)
}

// Pacing converts the vein section into executor pacing.
func (t Tuning) Pacing() vein.Pacing {
	return vein.Pacing{
		Budget:     time.Duration(t.Vein.PerTickBudgetMs * float64(time.Millisecond)),
		MaxBatch:   t.Vein.MaxBatch,
		MinBatch:   t.Vein.MinBatch,
		BatchStep:  t.Vein.BatchStep,
		AutoAdjust: t.Vein.AutoAdjust,
	}.Normalize()
}
