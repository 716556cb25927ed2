package cluster

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"github.com/rmax-ai/thermonet/pkg/geo"
	"github.com/rmax-ai/thermonet/pkg/network"
)

var (
	// ErrInvalidTransition is returned when a phase runs out of order.
	ErrInvalidTransition = errors.New("invalid clustering transition")
	// ErrNoStreetGeometry is returned when a synthetic consumer has no
	// active street segment to project onto.
	ErrNoStreetGeometry = errors.New("no active street geometry")
)

// State is the phase a Clusterer has completed.
type State int

const (
	StateRaw State = iota
	StateGrouped
	StateAggregated
	StateCleared
	StateRebuilt
)

func (s State) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StateGrouped:
		return "grouped"
	case StateAggregated:
		return "aggregated"
	case StateCleared:
		return "cleared"
	case StateRebuilt:
		return "rebuilt"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options tune a Clusterer.
type Options struct {
	Logger *slog.Logger
	// Progress, when set, is called once per rebuilt street.
	Progress func(street string)
}

// Report summarises a clustering run.
type Report struct {
	ActiveStreets      int                    `json:"active_streets"`
	PipesCollected     int                    `json:"pipes_collected"`
	ConsumersFolded    int                    `json:"consumers_folded"`
	ForksCleared       int                    `json:"forks_cleared"`
	ConsumersCleared   int                    `json:"consumers_cleared"`
	PipesCleared       int                    `json:"pipes_cleared"`
	SyntheticConsumers []string               `json:"synthetic_consumers"`
	IntersectionForks  int                    `json:"intersection_forks"`
	SupplyPipes        int                    `json:"supply_pipes"`
	Normalize          network.NormalizeStats `json:"normalize"`
}

// Clusterer aggregates the consumers of each street section of a network
// into one synthetic consumer and rebuilds the fork and pipe topology
// around them. Phases run in order Group, Aggregate, Clear, Rebuild.
type Clusterer struct {
	net      *network.Network
	sections []geo.Section
	sites    []network.ProducerSite
	logger   *slog.Logger
	progress func(string)

	state         State
	forksByStreet map[string][]int
	pipesByStreet map[string][]PipeRecord
	lengths       map[string]float64
	aggregates    map[string]*Aggregate
	report        Report
}

// New creates a Clusterer working in place on net.
func New(net *network.Network, sections []geo.Section, sites []network.ProducerSite, opts Options) *Clusterer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Clusterer{
		net:      net,
		sections: sections,
		sites:    sites,
		logger:   logger,
		progress: opts.Progress,
	}
}

// State returns the last completed phase.
func (c *Clusterer) State() State { return c.state }

// Network returns the network being clustered.
func (c *Clusterer) Network() *network.Network { return c.net }

// Aggregates returns the per-street aggregates once the aggregated phase
// has completed.
func (c *Clusterer) Aggregates() map[string]*Aggregate { return c.aggregates }

// Report returns the counters collected so far.
func (c *Clusterer) Report() Report { return c.report }

func (c *Clusterer) expect(s State) error {
	if c.state != s {
		return fmt.Errorf("%w: in state %s, want %s", ErrInvalidTransition, c.state, s)
	}
	return nil
}

// Group collects the forks and house connection pipes of every active
// street section. Collected pipes leave the network.
func (c *Clusterer) Group() error {
	if err := c.expect(StateRaw); err != nil {
		return err
	}
	c.forksByStreet = GroupForks(c.sections, c.net.Forks())
	c.pipesByStreet = CollectPipes(c.forksByStreet, c.net)
	c.lengths = SumLengths(c.pipesByStreet)

	c.report.ActiveStreets = len(c.forksByStreet)
	for _, street := range sortedKeys(c.forksByStreet) {
		if len(c.forksByStreet[street]) == 0 {
			c.logger.Debug("street has no forks", "street", street)
		}
	}
	for _, pipes := range c.pipesByStreet {
		c.report.PipesCollected += len(pipes)
	}
	PipesRemoved.WithLabelValues("collect").Add(float64(c.report.PipesCollected))

	c.state = StateGrouped
	return nil
}

// Aggregate folds the consumers behind the collected pipes. Folded
// consumers leave the network.
func (c *Clusterer) Aggregate() error {
	if err := c.expect(StateGrouped); err != nil {
		return err
	}
	aggregates, err := AggregateConsumers(c.pipesByStreet, c.net)
	if err != nil {
		return err
	}
	c.aggregates = aggregates
	for _, agg := range aggregates {
		c.report.ConsumersFolded += agg.Count
	}
	for _, street := range sortedKeys(c.pipesByStreet) {
		if _, ok := aggregates[street]; !ok {
			c.logger.Debug("street has no consumers", "street", street)
		}
	}
	ConsumersAggregated.Add(float64(c.report.ConsumersFolded))

	c.state = StateAggregated
	return nil
}

// Clear deletes the remaining forks, pipes and consumers. Consumers not
// folded into an aggregate would have no connection after the rebuild.
func (c *Clusterer) Clear() error {
	if err := c.expect(StateAggregated); err != nil {
		return err
	}
	c.report.PipesCleared = c.net.ClearPipes()
	c.report.ForksCleared = c.net.ClearForks()
	c.report.ConsumersCleared = c.net.ClearConsumers()
	if c.report.ConsumersCleared > 0 {
		c.logger.Debug("cleared consumers outside active streets", "count", c.report.ConsumersCleared)
	}
	c.net.ReindexForks()
	PipesRemoved.WithLabelValues("clear").Add(float64(c.report.PipesCleared))

	c.state = StateCleared
	return nil
}

// Rebuild inserts one synthetic consumer per aggregated street together
// with its foot point fork and connecting pipe, then recreates the
// intersection forks, producer connections and supply lines and
// normalises the result.
func (c *Clusterer) Rebuild() error {
	if err := c.expect(StateCleared); err != nil {
		return err
	}

	counter := 0
	for _, street := range sortedKeys(c.aggregates) {
		agg := c.aggregates[street]
		lat, lon := agg.Centroid()

		consumer := &network.Consumer{
			ID:      counter,
			Lat:     lat,
			Lon:     lon,
			Inputs:  agg.UnionInputs(),
			Street:  street,
			Length:  c.lengths[street],
			MaxHeat: agg.MaxHeat,
		}
		c.net.AddConsumer(consumer)

		fp, ok := geo.NearestFootPoint(orb.Point{lon, lat}, c.sections, counter, string(network.KindConsumer))
		if !ok {
			return fmt.Errorf("street %s: %w", street, ErrNoStreetGeometry)
		}
		forkID, err := geo.ForkID(fp.Label)
		if err != nil {
			return fmt.Errorf("street %s: %w", street, err)
		}
		if _, exists := c.net.Fork(forkID); exists {
			return fmt.Errorf("street %s: fork %s already exists", street, network.Ref(network.KindFork, forkID))
		}

		c.net.AddPipe(&network.Pipe{
			ID:            c.net.NextPipeID(),
			From:          network.Ref(network.KindFork, forkID),
			To:            consumer.Ref(),
			Length:        fp.Distance,
			ComponentType: network.ComponentPipe,
			Street:        street,
		})
		c.net.CreateFork(forkID, fp)

		c.report.SyntheticConsumers = append(c.report.SyntheticConsumers, consumer.Ref())
		StreetsClustered.Inc()
		if c.progress != nil {
			c.progress(street)
		}
		counter++
	}

	c.report.IntersectionForks = c.net.CreateIntersectionForks(c.sections)
	if err := c.net.CreateProducerConnectionPoints(c.sites, c.sections); err != nil {
		return err
	}
	c.report.SupplyPipes = c.net.CreateSupplyLine(c.sections)

	stats, err := c.net.Normalize(false)
	c.report.Normalize = stats
	if err != nil {
		return fmt.Errorf("rebuilt network is inconsistent: %w", err)
	}
	if stats.OrphanConsumers > 0 {
		c.logger.Warn("dropped consumers without connection", "count", stats.OrphanConsumers)
	}

	c.state = StateRebuilt
	return nil
}

// Run executes every remaining phase in order.
func (c *Clusterer) Run() (Report, error) {
	start := time.Now()
	steps := []struct {
		from State
		fn   func() error
	}{
		{StateRaw, c.Group},
		{StateGrouped, c.Aggregate},
		{StateAggregated, c.Clear},
		{StateCleared, c.Rebuild},
	}
	for _, step := range steps {
		if c.state != step.from {
			continue
		}
		if err := step.fn(); err != nil {
			return c.report, err
		}
	}
	RunDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("network clustered",
		"streets", len(c.report.SyntheticConsumers),
		"consumers_folded", c.report.ConsumersFolded,
		"forks", len(c.net.Forks()),
		"pipes", len(c.net.Pipes()))
	return c.report, nil
}
