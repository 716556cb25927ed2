package cluster

import (
	"fmt"
	"sort"

	"github.com/rmax-ai/thermonet/pkg/geo"
	"github.com/rmax-ai/thermonet/pkg/network"
)

// PipeRecord is a house connection pipe collected for a street section.
type PipeRecord struct {
	ID     int     `json:"id"`
	From   string  `json:"from_node"`
	To     string  `json:"to_node"`
	Length float64 `json:"length"`
}

// Aggregate accumulates the consumers folded into one synthetic consumer.
type Aggregate struct {
	Street  string     `json:"street"`
	Count   int        `json:"count"`
	LatSum  float64    `json:"lat_sum"`
	LonSum  float64    `json:"lon_sum"`
	MaxHeat float64    `json:"max_heat"`
	Inputs  [][]string `json:"inputs"`
	Members []int      `json:"members"`
}

// Centroid returns the arithmetic mean position of the folded consumers.
func (a *Aggregate) Centroid() (lat, lon float64) {
	if a.Count == 0 {
		return 0, 0
	}
	return a.LatSum / float64(a.Count), a.LonSum / float64(a.Count)
}

// UnionInputs returns every input port of the folded consumers once, in
// first-seen order.
func (a *Aggregate) UnionInputs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, inputs := range a.Inputs {
		for _, in := range inputs {
			if _, ok := seen[in]; ok {
				continue
			}
			seen[in] = struct{}{}
			out = append(out, in)
		}
	}
	return out
}

// sortedKeys returns map keys in lexicographic order. Street processing
// order determines synthetic consumer numbering.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GroupForks maps every active section label to the ids of the forks
// tagged with it. Inactive sections are not present; active sections
// without forks map to an empty list.
func GroupForks(sections []geo.Section, forks []*network.Fork) map[string][]int {
	grouped := make(map[string][]int)
	for _, s := range sections {
		if !s.Active {
			continue
		}
		ids := []int{}
		for _, f := range forks {
			if f.Street == s.Label {
				ids = append(ids, f.ID)
			}
		}
		grouped[s.Label] = ids
	}
	return grouped
}

// CollectPipes gathers, per street, the pipes running from one of the
// street's forks to a consumer and removes them from n. Streets without a
// matching pipe are omitted.
func CollectPipes(forksByStreet map[string][]int, n *network.Network) map[string][]PipeRecord {
	collected := make(map[string][]PipeRecord)
	drop := make(map[int]struct{})
	for _, street := range sortedKeys(forksByStreet) {
		ids := forksByStreet[street]
		if len(ids) == 0 {
			continue
		}
		refs := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			refs[network.Ref(network.KindFork, id)] = struct{}{}
		}
		for _, p := range n.Pipes() {
			if _, ok := refs[p.From]; !ok {
				continue
			}
			kind, _, err := network.ParseRef(p.To)
			if err != nil || kind != network.KindConsumer {
				continue
			}
			if _, taken := drop[p.ID]; taken {
				continue
			}
			collected[street] = append(collected[street], PipeRecord{
				ID:     p.ID,
				From:   p.From,
				To:     p.To,
				Length: p.Length,
			})
			drop[p.ID] = struct{}{}
		}
	}
	n.RemovePipes(drop)
	return collected
}

// SumLengths reduces every street's pipe list to its summed length.
func SumLengths(pipesByStreet map[string][]PipeRecord) map[string]float64 {
	lengths := make(map[string]float64, len(pipesByStreet))
	for street, pipes := range pipesByStreet {
		total := 0.0
		for _, p := range pipes {
			total += p.Length
		}
		lengths[street] = total
	}
	return lengths
}

// AggregateConsumers folds the consumers reached by each street's collected
// pipes and removes them from n. A pipe whose consumer is missing is a
// *network.ConsistencyError. Streets that fold no consumer are omitted.
func AggregateConsumers(pipesByStreet map[string][]PipeRecord, n *network.Network) (map[string]*Aggregate, error) {
	aggregates := make(map[string]*Aggregate)
	folded := make(map[int]struct{})
	for _, street := range sortedKeys(pipesByStreet) {
		agg := &Aggregate{Street: street}
		for _, p := range pipesByStreet[street] {
			_, id, err := network.ParseRef(p.To)
			if err != nil {
				return nil, fmt.Errorf("street %s: %w", street, err)
			}
			if _, done := folded[id]; done {
				continue
			}
			consumer, ok := n.Consumer(id)
			if !ok {
				return nil, fmt.Errorf("street %s: %w", street, &network.ConsistencyError{PipeID: p.ID, Ref: p.To})
			}
			agg.Count++
			agg.LatSum += consumer.Lat
			agg.LonSum += consumer.Lon
			agg.MaxHeat += consumer.MaxHeat
			agg.Inputs = append(agg.Inputs, append([]string(nil), consumer.Inputs...))
			agg.Members = append(agg.Members, consumer.ID)
			folded[id] = struct{}{}
		}
		if agg.Count == 0 {
			continue
		}
		aggregates[street] = agg
	}
	n.RemoveConsumers(folded)
	return aggregates, nil
}
