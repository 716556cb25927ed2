// Package linkplan derives how every clustered consumer is connected to
// the energy system: a connection bus, the clustered pipe towards it and
// one house station per input bus. Exergy and anergy flows are not
// distinguished.
package linkplan

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rmax-ai/thermonet/pkg/model"
	"github.com/rmax-ai/thermonet/pkg/network"
)

// ErrMissingPipeType is returned when the pipe types table lacks a row the
// plan depends on.
var ErrMissingPipeType = errors.New("missing pipe type")

const (
	pipeMaxPerInput    = 200
	stationMaxPerInput = 999

	// linearised heat loss of the clustered pipe
	lossPerMeter  = 15.8689 / 1500
	lossReference = 24.42
)

// PipeTypes looks up pipe type rows by their label_3.
type PipeTypes interface {
	PipeType(label3 string) (model.PipeType, bool)
}

// PipeLink is the clustered pipe from the network to a consumer bus.
type PipeLink struct {
	Label            string  `json:"label"`
	Input            string  `json:"input"`
	Output           string  `json:"output"`
	Length           float64 `json:"length"`
	EPCosts          float64 `json:"ep_costs"`
	ConstraintCosts  float64 `json:"periodical_constraint_costs"`
	Maximum          float64 `json:"maximum"`
	ConversionFactor float64 `json:"conversion_factor"`
}

// HouseStation feeds one input bus of a clustered consumer.
type HouseStation struct {
	Label      string  `json:"label"`
	Input      string  `json:"input"`
	Output     string  `json:"output"`
	EPCosts    float64 `json:"ep_costs"`
	Maximum    float64 `json:"maximum"`
	Efficiency float64 `json:"efficiency"`
}

// Connection is the complete connection of one clustered consumer.
type Connection struct {
	Consumer string         `json:"consumer"`
	Bus      string         `json:"bus"`
	Pipe     PipeLink       `json:"pipe"`
	Stations []HouseStation `json:"stations"`
}

// BusLabel names the connection bus of a clustered consumer.
func BusLabel(consumerID int) string {
	return "clustered_consumers_" + strconv.Itoa(consumerID)
}

// ConsumerHeatBus names the network side heat bus of a consumer.
func ConsumerHeatBus(consumerID int) string {
	return "consumers_heat_bus_" + network.Ref(network.KindConsumer, consumerID) + "_exergy"
}

// ConversionFactor is the share of heat left after a clustered pipe of the
// given length.
func ConversionFactor(length float64) float64 {
	return 1 - (lossPerMeter*length)/lossReference
}

// Build derives the connection of every consumer of a clustered network.
// The clustered pipe length is the length of the first pipe ending at the
// consumer.
func Build(n *network.Network, types PipeTypes) ([]Connection, error) {
	link, ok := types.PipeType(model.PipeTypeClusteredLink)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingPipeType, model.PipeTypeClusteredLink)
	}
	station, ok := types.PipeType(model.PipeTypeHouseStation)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingPipeType, model.PipeTypeHouseStation)
	}

	lengths := make(map[string]float64)
	for _, p := range n.Pipes() {
		if _, seen := lengths[p.To]; !seen {
			lengths[p.To] = p.Length
		}
	}

	conns := make([]Connection, 0, len(n.Consumers()))
	for _, c := range n.Consumers() {
		length, ok := lengths[c.Ref()]
		if !ok {
			return nil, fmt.Errorf("consumer %s: %w", c.Ref(), network.ErrDanglingReference)
		}
		inputs := float64(len(c.Inputs))
		bus := BusLabel(c.ID)
		conn := Connection{
			Consumer: c.Ref(),
			Bus:      bus,
			Pipe: PipeLink{
				Label:            fmt.Sprintf("pipe-clustered%d-%s", c.ID, strconv.FormatFloat(length, 'f', -1, 64)),
				Input:            ConsumerHeatBus(c.ID),
				Output:           bus,
				Length:           length,
				EPCosts:          link.CapexPipes * length,
				ConstraintCosts:  link.PeriodicalConstraintCosts * length,
				Maximum:          pipeMaxPerInput * inputs,
				ConversionFactor: ConversionFactor(length),
			},
		}
		for _, in := range c.Inputs {
			conn.Stations = append(conn.Stations, HouseStation{
				Label:      fmt.Sprintf("dh_heat_house_station_%d-%s", c.ID, in),
				Input:      bus,
				Output:     in,
				EPCosts:    station.CapexPipes,
				Maximum:    stationMaxPerInput * inputs,
				Efficiency: station.Efficiency,
			})
		}
		conns = append(conns, conn)
	}
	return conns, nil
}
