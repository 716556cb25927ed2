package montecarlo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/thermonet/pkg/model"
)

func definition() *model.Definition {
	return &model.Definition{
		Buses: []model.Bus{
			{Label: "h1", Sector: model.SectorHeat},
			{Label: "h2", Sector: model.SectorHeat},
			{Label: "h3", Sector: model.SectorHeat},
			{Label: "plant", Sector: model.SectorCentralHeat},
			{Label: "grid", Sector: "electricity", DistrictHeatingConn: "0"},
		},
		Sources:      []model.Investable{{Label: "roofA", MinInvestment: 1, MaxInvestment: 20}},
		Transformers: []model.Investable{{Label: "boiler", MaxInvestment: 5}},
		Storages:     []model.Investable{{Label: "tank", MaxInvestment: 0}},
		Links:        []model.Investable{{Label: "line", MaxInvestment: 3.7}},
		Insulation:   []model.Insulation{{Label: "wall", Area: 120}},
		Streets:      []model.Street{{Label: "main", Active: false}, {Label: "side", Active: true}},
	}
}

func TestInSection(t *testing.T) {
	tests := []struct {
		current, runs, section int
		want                   bool
	}{
		{0, 10, 1, true},
		{9, 10, 1, true},
		{10, 10, 1, false},
		{10, 10, 2, true},
		{19, 10, 2, true},
		{5, 10, 2, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InSection(tt.current, tt.runs, tt.section), "%+v", tt)
	}
}

func TestVaryInvariants(t *testing.T) {
	def := definition()
	v := NewVarier(rand.New(rand.NewSource(7)), nil)

	for i := 0; i < 50; i++ {
		out, connected := v.Vary(def)

		count := 0
		for _, b := range out.Buses[:3] {
			if b.DistrictHeatingConn == model.ConnHouse {
				count++
			} else {
				assert.Equal(t, model.ConnNone, b.DistrictHeatingConn)
			}
		}
		assert.Equal(t, connected, count)
		if connected > 0 {
			assert.Equal(t, model.ConnSystem, out.Buses[3].DistrictHeatingConn)
		} else {
			assert.Equal(t, model.ConnNone, out.Buses[3].DistrictHeatingConn)
		}
		assert.Equal(t, "0", out.Buses[4].DistrictHeatingConn)

		for _, items := range [][]model.Investable{out.Sources, out.Transformers, out.Storages, out.Links} {
			for _, it := range items {
				assert.Equal(t, it.MinInvestment, it.MaxInvestment)
			}
		}
		assert.LessOrEqual(t, out.Sources[0].MaxInvestment, 20.0)
		assert.LessOrEqual(t, out.Links[0].MaxInvestment, 3.0)
		assert.Equal(t, 0.0, out.Storages[0].MaxInvestment)

		assert.Contains(t, []int{0, 1}, out.Insulation[0].ExistingWithCosts)
		assert.GreaterOrEqual(t, out.Insulation[0].Area, 0.0)
		assert.Less(t, out.Insulation[0].Area, 120.0)

		for _, s := range out.Streets {
			assert.Equal(t, connected != 0, s.Active)
		}
	}

	// the input definition is untouched
	assert.Equal(t, 20.0, def.Sources[0].MaxInvestment)
	assert.Equal(t, "", def.Buses[0].DistrictHeatingConn)
}

func TestGenerateIsReproducible(t *testing.T) {
	def := definition()
	cfg := Config{Runs: 6, SectionRuns: 2, Section: 2, Seed: 42}

	first := Generate(def, cfg, nil)
	second := Generate(def, cfg, nil)
	require.Len(t, first, 2)
	assert.Equal(t, 2, first[0].Run)
	assert.Equal(t, 3, first[1].Run)
	assert.Equal(t, first, second)

	// a section yields what the full study yields for those runs
	full := Generate(def, Config{Runs: 6, SectionRuns: 6, Section: 1, Seed: 42}, nil)
	require.Len(t, full, 6)
	assert.Equal(t, full[2], first[0])
}
