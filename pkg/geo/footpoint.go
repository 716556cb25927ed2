package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// FootPointPrefix starts every foot point label. The label is followed by
// the running index and a 5 character kind suffix ("-cons", "-prod").
const FootPointPrefix = "foot-point"

const kindSuffixLen = 5

// Section is a district heating street section. Line holds the ordered
// polyline in orb order (lon, lat).
type Section struct {
	Label  string         `json:"label"`
	Active bool           `json:"active"`
	Line   orb.LineString `json:"line"`
}

// Start returns the first endpoint of the section.
func (s Section) Start() orb.Point {
	return s.Line[0]
}

// End returns the last endpoint of the section.
func (s Section) End() orb.Point {
	return s.Line[len(s.Line)-1]
}

// FootPoint is the perpendicular projection of a point onto the nearest
// street segment.
type FootPoint struct {
	Label  string    `json:"label"`
	Street string    `json:"street"`
	Point  orb.Point `json:"point"`
	// Planar is the distance in decimal degrees used to pick the segment.
	Planar float64 `json:"planar"`
	// Distance is the haversine distance in meters between the
	// projected point and its foot point.
	Distance float64 `json:"distance"`
}

// Label builds the foot point label for the given running index and
// entity kind.
func Label(index int, kind string) string {
	suffix := kind
	if len(suffix) > kindSuffixLen-1 {
		suffix = suffix[:kindSuffixLen-1]
	}
	for len(suffix) < kindSuffixLen-1 {
		suffix += "_"
	}
	return fmt.Sprintf("%s%d-%s", FootPointPrefix, index, suffix)
}

// ForkID strips the foot point prefix and kind suffix from label and
// returns the embedded index.
func ForkID(label string) (int, error) {
	if !strings.HasPrefix(label, FootPointPrefix) || len(label) < len(FootPointPrefix)+kindSuffixLen+1 {
		return 0, fmt.Errorf("malformed foot point label %q", label)
	}
	raw := label[len(FootPointPrefix) : len(label)-kindSuffixLen]
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed foot point label %q: %w", label, err)
	}
	return id, nil
}

// Project returns the perpendicular foot of p on segment a-b, clamped to
// the segment. A zero-length segment yields a.
func Project(a, b, p orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// NearestFootPoint projects p onto every segment of every active section
// and returns the closest foot point. ok is false when no active section
// has a segment.
func NearestFootPoint(p orb.Point, sections []Section, index int, kind string) (FootPoint, bool) {
	best := FootPoint{Planar: math.Inf(1)}
	found := false
	for _, s := range sections {
		if !s.Active || len(s.Line) == 0 {
			continue
		}
		segments := len(s.Line) - 1
		if segments == 0 {
			// single point section
			segments = 1
		}
		for i := 0; i < segments; i++ {
			a := s.Line[i]
			b := a
			if i+1 < len(s.Line) {
				b = s.Line[i+1]
			}
			foot := Project(a, b, p)
			d := planar.Distance(p, foot)
			if d < best.Planar {
				best.Planar = d
				best.Point = foot
				best.Street = s.Label
				found = true
			}
		}
	}
	if !found {
		return FootPoint{}, false
	}
	best.Label = Label(index, kind)
	best.Distance = geo.DistanceHaversine(p, best.Point)
	return best, true
}

// Offset returns the arc-length position, in decimal degrees, of the
// projection of p along line.
func Offset(line orb.LineString, p orb.Point) float64 {
	if len(line) < 2 {
		return 0
	}
	bestDist := math.Inf(1)
	bestOffset := 0.0
	walked := 0.0
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		foot := Project(a, b, p)
		if d := planar.Distance(p, foot); d < bestDist {
			bestDist = d
			bestOffset = walked + planar.Distance(a, foot)
		}
		walked += planar.Distance(a, b)
	}
	return bestOffset
}

// Distance returns the haversine distance in meters between two points.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// ActiveSections filters sections down to the active ones.
func ActiveSections(sections []Section) []Section {
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}
