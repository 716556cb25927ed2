package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelRoundTrip(t *testing.T) {
	tests := []struct {
		index int
		kind  string
		want  string
	}{
		{0, "consumers", "foot-point0-cons"},
		{12, "producers", "foot-point12-prod"},
		{7, "x", "foot-point7-x___"},
	}
	for _, tt := range tests {
		label := Label(tt.index, tt.kind)
		assert.Equal(t, tt.want, label)

		id, err := ForkID(label)
		require.NoError(t, err)
		assert.Equal(t, tt.index, id)
	}
}

func TestForkIDMalformed(t *testing.T) {
	for _, label := range []string{"", "forks-3", "foot-point-cons", "foot-pointab-cons"} {
		_, err := ForkID(label)
		assert.Error(t, err, label)
	}
}

func TestProject(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{10, 0}

	assert.Equal(t, orb.Point{5, 0}, Project(a, b, orb.Point{5, 3}))
	// clamped to the endpoints
	assert.Equal(t, a, Project(a, b, orb.Point{-4, 1}))
	assert.Equal(t, b, Project(a, b, orb.Point{14, 1}))
	// degenerate segment
	assert.Equal(t, a, Project(a, a, orb.Point{3, 4}))
}

func TestNearestFootPoint(t *testing.T) {
	sections := []Section{
		{Label: "far", Active: true, Line: orb.LineString{{0, 10}, {10, 10}}},
		{Label: "near", Active: true, Line: orb.LineString{{0, 0}, {10, 0}}},
		{Label: "inactive", Active: false, Line: orb.LineString{{0, 1}, {10, 1}}},
	}

	fp, ok := NearestFootPoint(orb.Point{4, 2}, sections, 3, "consumers")
	require.True(t, ok)
	assert.Equal(t, "near", fp.Street)
	assert.Equal(t, orb.Point{4, 0}, fp.Point)
	assert.InDelta(t, 2.0, fp.Planar, 1e-12)
	assert.Equal(t, "foot-point3-cons", fp.Label)
	// two degrees of latitude on the equator
	assert.InDelta(t, 222639, fp.Distance, 50)
}

func TestNearestFootPointZeroLengthSegment(t *testing.T) {
	sections := []Section{
		{Label: "dot", Active: true, Line: orb.LineString{{1, 1}, {1, 1}}},
	}
	fp, ok := NearestFootPoint(orb.Point{4, 5}, sections, 0, "consumers")
	require.True(t, ok)
	assert.Equal(t, orb.Point{1, 1}, fp.Point)
	assert.InDelta(t, 5.0, fp.Planar, 1e-12)
	assert.False(t, math.IsNaN(fp.Distance))
}

func TestNearestFootPointNoActiveSection(t *testing.T) {
	sections := []Section{{Label: "off", Active: false, Line: orb.LineString{{0, 0}, {1, 1}}}}
	_, ok := NearestFootPoint(orb.Point{0, 0}, sections, 0, "consumers")
	assert.False(t, ok)
}

func TestOffset(t *testing.T) {
	line := orb.LineString{{0, 0}, {2, 0}, {2, 2}}
	assert.InDelta(t, 1.0, Offset(line, orb.Point{1, 1}), 1e-12)
	assert.InDelta(t, 3.0, Offset(line, orb.Point{3, 1}), 1e-12)
	assert.InDelta(t, 0.0, Offset(line, orb.Point{-1, 0}), 1e-12)
}
