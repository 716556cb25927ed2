package montecarlo

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/rmax-ai/thermonet/pkg/model"
)

// Config selects the runs of a Monte Carlo study.
type Config struct {
	// Runs is the total number of runs drawn.
	Runs int `json:"runs" toml:"runs"`
	// SectionRuns is the number of runs per section.
	SectionRuns int `json:"section_runs" toml:"section_runs"`
	// Section is the 1-based section whose runs are returned.
	Section int `json:"section" toml:"section"`
	// Seed of the random source. Zero picks a time based seed.
	Seed int64 `json:"seed" toml:"seed"`
}

// Variation is the model definition drawn for one run.
type Variation struct {
	Run                int               `json:"run"`
	ConnectedBuildings int               `json:"connected_buildings"`
	Definition         *model.Definition `json:"definition"`
}

// InSection reports whether run current belongs to section.
func InSection(current, sectionRuns, section int) bool {
	return current >= sectionRuns*(section-1) && current < sectionRuns*section
}

// Varier draws randomised model definitions from an injected source.
type Varier struct {
	rng    *rand.Rand
	logger *slog.Logger
}

// NewVarier creates a Varier. A nil logger uses slog.Default.
func NewVarier(rng *rand.Rand, logger *slog.Logger) *Varier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Varier{rng: rng, logger: logger}
}

// randInt draws an integer from [0, max].
func (v *Varier) randInt(max float64) float64 {
	upper := int(math.Floor(max))
	if upper <= 0 {
		return 0
	}
	return float64(v.rng.Intn(upper + 1))
}

func (v *Varier) pinInvestments(items []model.Investable, kind string) {
	for i := range items {
		drawn := v.randInt(items[i].MaxInvestment)
		items[i].MinInvestment = drawn
		items[i].MaxInvestment = drawn
		v.logger.Debug("investment varied", "kind", kind, "label", items[i].Label, "capacity", drawn)
	}
}

// Vary returns a randomised copy of def and the number of connected
// buildings. Heat buses draw their house connection, central heat buses
// join the dh-system only if a building connects, investment ranges are
// pinned to a value drawn from [0, max], insulation draws its existing
// flag and area, and street sections are active iff a building connects.
func (v *Varier) Vary(def *model.Definition) (*model.Definition, int) {
	out := def.Clone()

	connected := 0
	for i := range out.Buses {
		if out.Buses[i].Sector != model.SectorHeat {
			continue
		}
		if v.rng.Intn(2) == 1 {
			out.Buses[i].DistrictHeatingConn = model.ConnHouse
			connected++
		} else {
			out.Buses[i].DistrictHeatingConn = model.ConnNone
		}
	}
	for i := range out.Buses {
		if out.Buses[i].Sector != model.SectorCentralHeat {
			continue
		}
		if connected != 0 {
			out.Buses[i].DistrictHeatingConn = model.ConnSystem
		} else {
			out.Buses[i].DistrictHeatingConn = model.ConnNone
		}
	}

	v.pinInvestments(out.Sources, "source")
	v.pinInvestments(out.Transformers, "transformer")
	v.pinInvestments(out.Storages, "storage")
	v.pinInvestments(out.Links, "link")

	for i := range out.Insulation {
		out.Insulation[i].ExistingWithCosts = v.rng.Intn(2)
	}
	for i := range out.Insulation {
		out.Insulation[i].Area = v.rng.Float64() * def.Insulation[i].Area
	}

	for i := range out.Streets {
		out.Streets[i].Active = connected != 0
	}

	return out, connected
}

// Generate draws cfg.Runs variations in order and returns those of the
// selected section. Every run draws, selected or not, so a section yields
// the same definitions as in a full study with the same seed.
func Generate(def *model.Definition, cfg Config, logger *slog.Logger) []Variation {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	v := NewVarier(rand.New(rand.NewSource(seed)), logger)
	v.logger.Info("monte carlo study", "seed", seed, "runs", cfg.Runs, "section", cfg.Section)

	var selected []Variation
	for run := 0; run < cfg.Runs; run++ {
		varied, connected := v.Vary(def)
		if !InSection(run, cfg.SectionRuns, cfg.Section) {
			continue
		}
		selected = append(selected, Variation{Run: run, ConnectedBuildings: connected, Definition: varied})
	}
	return selected
}
