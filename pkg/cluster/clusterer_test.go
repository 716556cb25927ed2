package cluster

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/thermonet/pkg/geo"
	"github.com/rmax-ai/thermonet/pkg/network"
)

// twoStreets builds an active street "a" along the equator with two houses
// and an inactive street "b" with one house.
func twoStreets() (*network.Network, []geo.Section) {
	n := network.New()
	n.AddFork(&network.Fork{ID: 0, Lat: 0, Lon: 0, Street: "a"})
	n.AddFork(&network.Fork{ID: 1, Lat: 0, Lon: 2, Street: "a"})
	n.AddFork(&network.Fork{ID: 2, Lat: 10, Lon: 10, Street: "b"})
	n.AddConsumer(&network.Consumer{ID: 0, Lat: 1, Lon: 1, Inputs: []string{"house0_heat", "shared"}, MaxHeat: 10})
	n.AddConsumer(&network.Consumer{ID: 1, Lat: 3, Lon: 3, Inputs: []string{"house1_heat", "shared"}, MaxHeat: 15})
	n.AddConsumer(&network.Consumer{ID: 2, Lat: 11, Lon: 10, Inputs: []string{"house2_heat"}})
	n.AddPipe(&network.Pipe{ID: 0, From: "forks-0", To: "consumers-0", Length: 10})
	n.AddPipe(&network.Pipe{ID: 1, From: "forks-1", To: "consumers-1", Length: 20})
	n.AddPipe(&network.Pipe{ID: 2, From: "forks-0", To: "forks-1", Length: 5})
	n.AddPipe(&network.Pipe{ID: 3, From: "forks-2", To: "consumers-2", Length: 7})

	sections := []geo.Section{
		{Label: "a", Active: true, Line: orb.LineString{{0, 0}, {4, 0}}},
		{Label: "b", Active: false, Line: orb.LineString{{10, 10}, {11, 10}}},
	}
	return n, sections
}

func TestGroupForksSkipsInactive(t *testing.T) {
	n, sections := twoStreets()
	sections = append(sections, geo.Section{Label: "empty", Active: true, Line: orb.LineString{{5, 5}, {6, 5}}})

	grouped := GroupForks(sections, n.Forks())

	assert.Equal(t, []int{0, 1}, grouped["a"])
	assert.NotContains(t, grouped, "b")
	require.Contains(t, grouped, "empty")
	assert.Empty(t, grouped["empty"])
}

func TestCollectPipesRemovesHouseConnections(t *testing.T) {
	n, sections := twoStreets()

	pipes := CollectPipes(GroupForks(sections, n.Forks()), n)

	require.Len(t, pipes["a"], 2)
	assert.Equal(t, "consumers-0", pipes["a"][0].To)
	assert.Equal(t, 30.0, SumLengths(pipes)["a"])
	// backbone and inactive street pipes stay
	require.Len(t, n.Pipes(), 2)
	assert.Equal(t, 2, n.Pipes()[0].ID)
	assert.Equal(t, 3, n.Pipes()[1].ID)
}

func TestAggregateConsumersCentroidAndConservation(t *testing.T) {
	n, sections := twoStreets()
	before := len(n.Consumers())
	pipes := CollectPipes(GroupForks(sections, n.Forks()), n)

	aggs, err := AggregateConsumers(pipes, n)
	require.NoError(t, err)
	require.Contains(t, aggs, "a")

	agg := aggs["a"]
	lat, lon := agg.Centroid()
	assert.Equal(t, 2.0, lat)
	assert.Equal(t, 2.0, lon)
	assert.Equal(t, 2, agg.Count)
	assert.Equal(t, before-agg.Count, len(n.Consumers()))
	assert.Equal(t, []string{"house0_heat", "shared", "house1_heat"}, agg.UnionInputs())
	assert.Equal(t, 25.0, agg.MaxHeat)
}

func TestAggregateConsumersMissingConsumer(t *testing.T) {
	n := network.New()
	pipes := map[string][]PipeRecord{
		"a": {{ID: 4, From: "forks-0", To: "consumers-9", Length: 1}},
	}

	_, err := AggregateConsumers(pipes, n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrDanglingReference))

	var ce *network.ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 4, ce.PipeID)
}

func TestClustererRejectsOutOfOrderPhases(t *testing.T) {
	n, sections := twoStreets()
	c := New(n, sections, nil, Options{})

	err := c.Aggregate()
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	require.NoError(t, c.Group())
	assert.True(t, errors.Is(c.Group(), ErrInvalidTransition))
	assert.True(t, errors.Is(c.Rebuild(), ErrInvalidTransition))
	assert.Equal(t, StateGrouped, c.State())
}

func TestClearLeavesNoForksOrPipes(t *testing.T) {
	n, sections := twoStreets()
	c := New(n, sections, nil, Options{})
	require.NoError(t, c.Group())
	require.NoError(t, c.Aggregate())
	require.NoError(t, c.Clear())

	assert.Empty(t, n.Forks())
	assert.Empty(t, n.Pipes())
	assert.Empty(t, n.Consumers())
	assert.Equal(t, 1, c.Report().ConsumersCleared)
	assert.Equal(t, 3, c.Report().ForksCleared)
	assert.Equal(t, 2, c.Report().PipesCleared)
	assert.Equal(t, StateCleared, c.State())
}

func TestClustererRun(t *testing.T) {
	n, sections := twoStreets()
	var rebuilt []string
	c := New(n, sections, nil, Options{Progress: func(street string) { rebuilt = append(rebuilt, street) }})

	report, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, StateRebuilt, c.State())
	assert.Equal(t, []string{"a"}, rebuilt)
	assert.Equal(t, []string{"consumers-0"}, report.SyntheticConsumers)
	assert.Equal(t, 2, report.IntersectionForks)
	assert.Equal(t, 2, report.SupplyPipes)
	// the inactive street's house is removed in the clear phase
	assert.Equal(t, 1, report.ConsumersCleared)
	assert.Equal(t, 0, report.Normalize.OrphanConsumers)

	require.Len(t, n.Consumers(), 1)
	synthetic := n.Consumers()[0]
	assert.Equal(t, 0, synthetic.ID)
	assert.Equal(t, 2.0, synthetic.Lat)
	assert.Equal(t, 2.0, synthetic.Lon)
	assert.Equal(t, 30.0, synthetic.Length)
	assert.Equal(t, "a", synthetic.Street)

	fork, ok := n.Fork(0)
	require.True(t, ok)
	assert.Equal(t, 0.0, fork.Lat)
	assert.Equal(t, 2.0, fork.Lon)

	require.Len(t, n.Pipes(), 3)
	house := n.Pipes()[0]
	assert.Equal(t, "forks-0", house.From)
	assert.Equal(t, "consumers-0", house.To)
	assert.InDelta(t, 222639, house.Length, 50)

	assert.NoError(t, n.Validate())
}

func TestClustererRunIsDeterministic(t *testing.T) {
	build := func() network.Snapshot {
		n, sections := twoStreets()
		sections = append(sections, geo.Section{Label: "c", Active: true, Line: orb.LineString{{0, 5}, {4, 5}}})
		n.AddFork(&network.Fork{ID: 3, Lat: 5, Lon: 1, Street: "c"})
		n.AddConsumer(&network.Consumer{ID: 3, Lat: 6, Lon: 1})
		n.AddPipe(&network.Pipe{ID: 4, From: "forks-3", To: "consumers-3", Length: 3})

		_, err := New(n, sections, []network.ProducerSite{{Label: "plant", Lat: -1, Lon: 0.5}}, Options{}).Run()
		require.NoError(t, err)
		return n.Snapshot()
	}

	first, second := build(), build()
	assert.Equal(t, first, second)
	require.Len(t, first.Consumers, 2)
	// streets are rebuilt in label order and numbered from 0
	assert.Equal(t, "a", first.Consumers[0].Street)
	assert.Equal(t, 0, first.Consumers[0].ID)
	assert.Equal(t, "c", first.Consumers[1].Street)
	assert.Equal(t, 1, first.Consumers[1].ID)
	require.Len(t, first.Producers, 1)
	assert.Equal(t, "plant", first.Producers[0].Label)
}

func TestClustererNoStreetGeometry(t *testing.T) {
	n, _ := twoStreets()
	// fork tagged with an active street whose line is empty
	sections := []geo.Section{{Label: "a", Active: true}}

	_, err := New(n, sections, nil, Options{}).Run()
	assert.True(t, errors.Is(err, ErrNoStreetGeometry))
}
