package network

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON renders the network as a feature collection: nodes become points,
// pipes become two-point line strings. Pipes with an unresolved endpoint
// are skipped.
func (n *Network) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	positions := make(map[string]orb.Point, len(n.forks)+len(n.consumers)+len(n.producers))

	for _, f := range n.forks {
		positions[f.Ref()] = f.Point()
		feat := geojson.NewFeature(f.Point())
		feat.Properties["id"] = f.Ref()
		feat.Properties["kind"] = string(KindFork)
		feat.Properties["street"] = f.Street
		fc.Append(feat)
	}
	for _, c := range n.consumers {
		positions[c.Ref()] = c.Point()
		feat := geojson.NewFeature(c.Point())
		feat.Properties["id"] = c.Ref()
		feat.Properties["kind"] = string(KindConsumer)
		feat.Properties["street"] = c.Street
		feat.Properties["input"] = c.Inputs
		feat.Properties["length"] = c.Length
		fc.Append(feat)
	}
	for _, p := range n.producers {
		positions[p.Ref()] = p.Point()
		feat := geojson.NewFeature(p.Point())
		feat.Properties["id"] = p.Ref()
		feat.Properties["kind"] = string(KindProducer)
		feat.Properties["label"] = p.Label
		fc.Append(feat)
	}
	for _, p := range n.pipes {
		from, ok := positions[p.From]
		if !ok {
			continue
		}
		to, ok := positions[p.To]
		if !ok {
			continue
		}
		feat := geojson.NewFeature(orb.LineString{from, to})
		feat.Properties["id"] = p.Ref()
		feat.Properties["kind"] = string(KindPipe)
		feat.Properties["from_node"] = p.From
		feat.Properties["to_node"] = p.To
		feat.Properties["length"] = p.Length
		fc.Append(feat)
	}
	return fc
}
