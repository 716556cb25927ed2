package model

import (
	"github.com/paulmach/orb"

	"github.com/rmax-ai/thermonet/pkg/geo"
	"github.com/rmax-ai/thermonet/pkg/network"
)

// District heating connection values of a bus.
const (
	ConnNone   = "0"
	ConnHouse  = "1"
	ConnSystem = "dh-system"
)

// Bus sectors the Monte Carlo variation distinguishes.
const (
	SectorHeat        = "heat"
	SectorCentralHeat = "central_heat"
)

// Pipe type rows referenced by label_3.
const (
	PipeTypeClusteredLink = "clustered_consumer_link"
	PipeTypeHouseStation  = "dh_heatstation"
)

// Bus is a model definition bus. Heat buses with a house connection feed
// consumers; buses connected to the dh-system are producer sites.
type Bus struct {
	Label               string  `json:"label"`
	Active              bool    `json:"active"`
	Sector              string  `json:"sector"`
	DistrictHeatingConn string  `json:"district_heating_conn"`
	Lat                 float64 `json:"lat"`
	Lon                 float64 `json:"lon"`
}

// Investable is any component with an investment capacity range.
type Investable struct {
	Label         string  `json:"label"`
	Active        bool    `json:"active"`
	Type          string  `json:"type,omitempty"`
	MinInvestment float64 `json:"min_investment_capacity"`
	MaxInvestment float64 `json:"max_investment_capacity"`
}

// Insulation is an insulation measure of a building.
type Insulation struct {
	Label             string  `json:"label"`
	Active            bool    `json:"active"`
	Sink              string  `json:"sink"`
	ExistingWithCosts int     `json:"existing_with_costs"`
	Area              float64 `json:"area"`
}

// Street is a district heating street section between two positions.
// Points, when present, describe the full polyline as lat/lon pairs and
// take precedence.
type Street struct {
	Label  string       `json:"label"`
	Active bool         `json:"active"`
	Lat1   float64      `json:"lat_1"`
	Lon1   float64      `json:"lon_1"`
	Lat2   float64      `json:"lat_2"`
	Lon2   float64      `json:"lon_2"`
	Points [][2]float64 `json:"points,omitempty"`
}

// Line returns the street polyline in lon/lat order.
func (s Street) Line() orb.LineString {
	if len(s.Points) > 0 {
		line := make(orb.LineString, len(s.Points))
		for i, p := range s.Points {
			line[i] = orb.Point{p[1], p[0]}
		}
		return line
	}
	return orb.LineString{{s.Lon1, s.Lat1}, {s.Lon2, s.Lat2}}
}

// PipeType is a row of the pipe types table.
type PipeType struct {
	Label                     string  `json:"label"`
	Label3                    string  `json:"label_3"`
	Active                    bool    `json:"active"`
	CapexPipes                float64 `json:"capex_pipes"`
	PeriodicalConstraintCosts float64 `json:"periodical_constraint_costs"`
	Efficiency                float64 `json:"efficiency"`
}

// Definition is a complete model definition.
type Definition struct {
	Name         string       `json:"name"`
	Buses        []Bus        `json:"buses"`
	Sources      []Investable `json:"sources"`
	Transformers []Investable `json:"transformers"`
	Storages     []Investable `json:"storages"`
	Links        []Investable `json:"links"`
	Insulation   []Insulation `json:"insulation"`
	Streets      []Street     `json:"district_heating"`
	PipeTypes    []PipeType   `json:"pipe_types"`
}

// Sections converts the street table into street sections.
func (d *Definition) Sections() []geo.Section {
	sections := make([]geo.Section, 0, len(d.Streets))
	for _, s := range d.Streets {
		sections = append(sections, geo.Section{Label: s.Label, Active: s.Active, Line: s.Line()})
	}
	return sections
}

// ProducerSites returns the active buses connected to the dh-system.
func (d *Definition) ProducerSites() []network.ProducerSite {
	var sites []network.ProducerSite
	for _, b := range d.Buses {
		if !b.Active || b.DistrictHeatingConn != ConnSystem {
			continue
		}
		sites = append(sites, network.ProducerSite{Label: b.Label, Lat: b.Lat, Lon: b.Lon})
	}
	return sites
}

// SourceLabels returns the labels of the active sources.
func (d *Definition) SourceLabels() []string {
	var labels []string
	for _, s := range d.Sources {
		if s.Active {
			labels = append(labels, s.Label)
		}
	}
	return labels
}

// PipeType returns the first pipe type whose label_3 matches.
func (d *Definition) PipeType(label3 string) (PipeType, bool) {
	for _, p := range d.PipeTypes {
		if p.Label3 == label3 {
			return p, true
		}
	}
	return PipeType{}, false
}

// Clone returns a deep copy.
func (d *Definition) Clone() *Definition {
	c := *d
	c.Buses = append([]Bus(nil), d.Buses...)
	c.Sources = append([]Investable(nil), d.Sources...)
	c.Transformers = append([]Investable(nil), d.Transformers...)
	c.Storages = append([]Investable(nil), d.Storages...)
	c.Links = append([]Investable(nil), d.Links...)
	c.Insulation = append([]Insulation(nil), d.Insulation...)
	c.Streets = make([]Street, len(d.Streets))
	for i, s := range d.Streets {
		s.Points = append([][2]float64(nil), s.Points...)
		c.Streets[i] = s
	}
	c.PipeTypes = append([]PipeType(nil), d.PipeTypes...)
	return &c
}
