package projection

import (
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiny-explorers/internal/geodata"
)

const eps = 1e-6

func box(name string, lon0, lat0, lon1, lat1 float64) *geodata.Feature {
	return &geodata.Feature{Name: name, Geometry: orb.Polygon{{
		{lon0, lat0}, {lon1, lat0}, {lon1, lat1}, {lon0, lat1}, {lon0, lat0},
	}}}
}

func randomCollection(r *rand.Rand) []*geodata.Feature {
	n := 1 + r.Intn(12)
	out := make([]*geodata.Feature, 0, n)
	for i := 0; i < n; i++ {
		lon := -180 + r.Float64()*340
		lat := -80 + r.Float64()*150
		out = append(out, box("f", lon, lat, lon+0.5+r.Float64()*20, lat+0.5+r.Float64()*10))
	}
	return out
}

func TestFitKeepsEveryFeatureInsideViewport(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		fs := randomCollection(r)
		w := 50 + r.Float64()*1500
		h := 50 + r.Float64()*1000
		p, err := Fit(fs, w, h)
		require.NoError(t, err)

		union := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
		for _, f := range fs {
			b := p.Bound(f)
			assert.GreaterOrEqual(t, b.Min[0], -eps)
			assert.GreaterOrEqual(t, b.Min[1], -eps)
			assert.LessOrEqual(t, b.Max[0], w+eps)
			assert.LessOrEqual(t, b.Max[1], h+eps)
			union.Min[0] = math.Min(union.Min[0], b.Min[0])
			union.Min[1] = math.Min(union.Min[1], b.Min[1])
			union.Max[0] = math.Max(union.Max[0], b.Max[0])
			union.Max[1] = math.Max(union.Max[1], b.Max[1])
		}

		spansW := math.Abs(union.Min[0]) < eps && math.Abs(union.Max[0]-w) < eps
		spansH := math.Abs(union.Min[1]) < eps && math.Abs(union.Max[1]-h) < eps
		require.True(t, spansW || spansH, "fit touches the limiting extent (case %d)", i)
		if !spansW {
			assert.InDelta(t, w/2, (union.Min[0]+union.Max[0])/2, eps, "slack axis centered")
		}
		if !spansH {
			assert.InDelta(t, h/2, (union.Min[1]+union.Max[1])/2, eps, "slack axis centered")
		}
	}
}

func TestFitPreservesAspect(t *testing.T) {
	fs := []*geodata.Feature{box("eq", -10, -10, 10, 10)}
	p, err := Fit(fs, 800, 400)
	require.NoError(t, err)
	b := p.Bound(fs[0])
	// near the equator Mercator is close to square
	assert.InDelta(t, b.Max[0]-b.Min[0], b.Max[1]-b.Min[1], 5)
	assert.InDelta(t, 400, b.Max[1]-b.Min[1], eps)
	// centred on the slack axis: the midpoint sits at w/2
	assert.InDelta(t, 800, b.Max[0]+b.Min[0], eps)
}

func TestNorthIsUp(t *testing.T) {
	p, err := Fit([]*geodata.Feature{box("a", 0, 0, 10, 10)}, 100, 100)
	require.NoError(t, err)
	assert.Less(t, p.Point(5, 9)[1], p.Point(5, 1)[1])
	assert.Less(t, p.Point(1, 5)[0], p.Point(9, 5)[0])
}

func TestPolesAreClamped(t *testing.T) {
	p, err := Fit([]*geodata.Feature{box("pole", -20, 60, 20, 90)}, 300, 300)
	require.NoError(t, err)
	pt := p.Point(0, 90)
	assert.False(t, math.IsInf(pt[1], 0) || math.IsNaN(pt[1]))
	assert.Equal(t, p.Point(0, maxLat), pt)
}

func TestDegenerateFeatureGetsOffscreenCentroid(t *testing.T) {
	good := box("good", 0, 0, 10, 10)
	flat := &geodata.Feature{Name: "flat", Geometry: orb.Polygon{{{1, 1}, {5, 1}, {9, 1}, {1, 1}}}}
	point := &geodata.Feature{Name: "dot", Geometry: orb.Point{3, 3}}
	empty := &geodata.Feature{Name: "none"}

	p, err := Fit([]*geodata.Feature{good, flat, point, empty}, 200, 200)
	require.NoError(t, err)

	assert.Equal(t, Offscreen, p.Centroid(flat))
	assert.Equal(t, 0.0, p.Area(flat))
	assert.NotEmpty(t, p.Path(flat), "outline still drawn")
	assert.Equal(t, Offscreen, p.Centroid(point))
	assert.Empty(t, p.Path(point))
	assert.Equal(t, Offscreen, p.Centroid(empty))

	c := p.Centroid(good)
	assert.InDelta(t, 100, c[0], 1)
	assert.Greater(t, p.Area(good), 0.0)
}

func TestMultiPolygonMeasuredAsWhole(t *testing.T) {
	f := &geodata.Feature{Name: "islands", Geometry: orb.MultiPolygon{
		{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
		{{{9, 0}, {10, 0}, {10, 1}, {9, 1}, {9, 0}}},
	}}
	p, err := Fit([]*geodata.Feature{f}, 100, 100)
	require.NoError(t, err)
	s := p.Measure(f)
	assert.Len(t, s.Path, 2)
	assert.InDelta(t, 50, s.Centroid[0], 0.5)
	assert.InDelta(t, 0, s.Bound.Min[0], eps)
	assert.InDelta(t, 100, s.Bound.Max[0], eps)
}

func TestFitErrors(t *testing.T) {
	fs := []*geodata.Feature{box("a", 0, 0, 1, 1)}
	_, err := Fit(fs, 0, 100)
	assert.ErrorIs(t, err, ErrBadSize)
	_, err = Fit(fs, 100, -1)
	assert.ErrorIs(t, err, ErrBadSize)
	_, err = Fit(nil, 100, 100)
	assert.ErrorIs(t, err, ErrNoCoords)
	_, err = Fit([]*geodata.Feature{{Name: "x", Geometry: orb.Polygon{{{math.NaN(), 1}}}}}, 100, 100)
	assert.ErrorIs(t, err, ErrNoCoords)
}
