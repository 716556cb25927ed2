package network

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/rmax-ai/thermonet/pkg/geo"
)

const coordEpsilon = 1e-9

func samePoint(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) <= coordEpsilon && math.Abs(a[1]-b[1]) <= coordEpsilon
}

// CreateFork inserts a fork with the given id at the foot point position.
func (n *Network) CreateFork(id int, fp geo.FootPoint) *Fork {
	f := &Fork{ID: id, Lat: fp.Point.Lat(), Lon: fp.Point.Lon(), Street: fp.Street}
	n.AddFork(f)
	return f
}

func (n *Network) forkAt(p orb.Point) (*Fork, bool) {
	for _, f := range n.forks {
		if samePoint(f.Point(), p) {
			return f, true
		}
	}
	return nil, false
}

// CreateIntersectionForks adds a fork at every distinct endpoint of the
// active sections. Endpoints already occupied by a fork are skipped. It
// returns the number of forks created.
func (n *Network) CreateIntersectionForks(sections []geo.Section) int {
	created := 0
	for _, s := range sections {
		if !s.Active || len(s.Line) == 0 {
			continue
		}
		for _, p := range []orb.Point{s.Start(), s.End()} {
			if _, ok := n.forkAt(p); ok {
				continue
			}
			n.AddFork(&Fork{ID: n.NextForkID(), Lat: p.Lat(), Lon: p.Lon(), Street: s.Label})
			created++
		}
	}
	return created
}

// CreateProducerConnectionPoints connects every producer site to the
// nearest active section: a fork at the foot point, a producer node and a
// pipe from the producer to that fork.
func (n *Network) CreateProducerConnectionPoints(sites []ProducerSite, sections []geo.Section) error {
	for _, site := range sites {
		id := n.NextProducerID()
		fp, ok := geo.NearestFootPoint(orb.Point{site.Lon, site.Lat}, sections, id, string(KindProducer))
		if !ok {
			return fmt.Errorf("producer %s: no active street section to connect to", site.Label)
		}
		fork, exists := n.forkAt(fp.Point)
		if !exists {
			fork = n.CreateFork(n.NextForkID(), fp)
		}
		producer := &Producer{ID: id, Label: site.Label, Lat: site.Lat, Lon: site.Lon, Street: fp.Street}
		n.AddProducer(producer)
		n.AddPipe(&Pipe{
			ID:            n.NextPipeID(),
			From:          producer.Ref(),
			To:            fork.Ref(),
			Length:        fp.Distance,
			ComponentType: ComponentPipe,
			Street:        fp.Street,
		})
	}
	return nil
}

// CreateSupplyLine chains the forks lying on each active section, ordered
// along the section polyline, with backbone pipes. A fork lies on a section
// when it carries the section label or sits on one of its endpoints. It
// returns the number of pipes created.
func (n *Network) CreateSupplyLine(sections []geo.Section) int {
	created := 0
	for _, s := range sections {
		if !s.Active || len(s.Line) < 2 {
			continue
		}
		var members []*Fork
		for _, f := range n.forks {
			if f.Street == s.Label || samePoint(f.Point(), s.Start()) || samePoint(f.Point(), s.End()) {
				members = append(members, f)
			}
		}
		offsets := make(map[int]float64, len(members))
		for _, f := range members {
			offsets[f.ID] = geo.Offset(s.Line, f.Point())
		}
		sort.SliceStable(members, func(i, j int) bool {
			oi, oj := offsets[members[i].ID], offsets[members[j].ID]
			if oi != oj {
				return oi < oj
			}
			return members[i].ID < members[j].ID
		})
		for i := 0; i+1 < len(members); i++ {
			a, b := members[i], members[i+1]
			n.AddPipe(&Pipe{
				ID:            n.NextPipeID(),
				From:          a.Ref(),
				To:            b.Ref(),
				Length:        geo.Distance(a.Point(), b.Point()),
				ComponentType: ComponentPipe,
				Street:        s.Label,
			})
			created++
		}
	}
	return created
}

// NormalizeStats reports what Normalize changed.
type NormalizeStats struct {
	DuplicatePipes   int `json:"duplicate_pipes"`
	OrphanConsumers  int `json:"orphan_consumers"`
	SelfLoopPipes    int `json:"self_loop_pipes"`
	ConsumersUpdated int `json:"consumers_updated"`
}

// Normalize brings the network into its canonical form: duplicate and
// self-loop pipes are dropped, consumers without a connecting pipe are
// removed and pipes are renumbered densely from 0. For a full (unclustered)
// network each consumer's connection length is derived from its pipes;
// clustered consumers keep their aggregated length. The result is
// validated.
func (n *Network) Normalize(fullNetwork bool) (NormalizeStats, error) {
	var stats NormalizeStats

	seen := make(map[[2]string]struct{}, len(n.pipes))
	kept := n.pipes[:0:0]
	for _, p := range n.pipes {
		if p.From == p.To {
			stats.SelfLoopPipes++
			continue
		}
		key := [2]string{p.From, p.To}
		if key[1] < key[0] {
			key[0], key[1] = key[1], key[0]
		}
		if _, dup := seen[key]; dup {
			stats.DuplicatePipes++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, p)
	}
	n.pipes = kept

	lengths := make(map[string]float64)
	for _, p := range n.pipes {
		lengths[p.From] += p.Length
		lengths[p.To] += p.Length
	}
	orphans := make(map[int]struct{})
	for _, c := range n.consumers {
		total, connected := lengths[c.Ref()]
		if !connected {
			orphans[c.ID] = struct{}{}
			continue
		}
		if fullNetwork {
			c.Length = total
			stats.ConsumersUpdated++
		}
	}
	stats.OrphanConsumers = n.RemoveConsumers(orphans)

	for i, p := range n.pipes {
		p.ID = i
	}

	if err := n.Validate(); err != nil {
		return stats, err
	}
	return stats, nil
}
