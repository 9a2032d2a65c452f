package viewport

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiny-explorers/internal/eventloop"
)

func sized(t *testing.T, overscroll float64, w, h float64) (*Controller, *eventloop.FakeClock) {
	t.Helper()
	clk := eventloop.NewFakeClock(time.Unix(0, 0))
	c := New(clk, overscroll)
	c.Observe(w, h)
	clk.Advance(FrameInterval)
	gw, gh := c.Size()
	require.Equal(t, w, gw)
	require.Equal(t, h, gh)
	return c, clk
}

func TestResizeCoalescedPerFrame(t *testing.T) {
	clk := eventloop.NewFakeClock(time.Unix(0, 0))
	c := New(clk, 0)
	var got [][2]float64
	c.OnResize = func(w, h float64) { got = append(got, [2]float64{w, h}) }

	c.Observe(100, 100)
	c.Observe(300, 120)
	c.Observe(640, 480)
	assert.Empty(t, got, "nothing committed before the frame ends")
	assert.Equal(t, 1, clk.Pending())

	clk.Advance(FrameInterval)
	assert.Equal(t, [][2]float64{{640, 480}}, got)
}

func TestResizeToleranceAbsorbsJitter(t *testing.T) {
	clk := eventloop.NewFakeClock(time.Unix(0, 0))
	c := New(clk, 0)
	n := 0
	c.OnResize = func(w, h float64) { n++ }

	c.Observe(640, 480)
	clk.Advance(FrameInterval)
	c.Observe(640.4, 479.6)
	clk.Advance(FrameInterval)
	assert.Equal(t, 1, n)

	c.Observe(641, 480)
	clk.Advance(FrameInterval)
	assert.Equal(t, 2, n)

	c.Observe(0, 480)
	clk.Advance(FrameInterval)
	assert.Equal(t, 2, n, "collapsed container is ignored")
}

func TestZoomClampedToRange(t *testing.T) {
	c, _ := sized(t, 0, 100, 100)

	c.ZoomTo(100, 50, 50)
	assert.Equal(t, MaxScale, c.Transform().K)
	assert.InDelta(t, BaseStroke/8, c.StrokeWidth(), 1e-9)

	c.Zoom(0.01, 50, 50)
	assert.Equal(t, MinScale, c.Transform().K)
	assert.Equal(t, Identity, c.Transform())
	assert.Equal(t, BaseStroke, c.StrokeWidth())
}

func TestZoomKeepsAnchorFixed(t *testing.T) {
	c, _ := sized(t, 0, 100, 100)
	before := c.Invert(30, 40)
	c.Zoom(2, 30, 40)
	assert.Equal(t, 2.0, c.Transform().K)
	assert.InDelta(t, before[0], c.Invert(30, 40)[0], 1e-9)
	assert.InDelta(t, before[1], c.Invert(30, 40)[1], 1e-9)
}

func TestPanBoundedWithoutOverscroll(t *testing.T) {
	c, _ := sized(t, 0, 100, 100)

	c.Pan(40, 40)
	assert.Equal(t, Identity, c.Transform(), "unzoomed map cannot move")

	c.ZoomTo(2, 50, 50)
	assert.Equal(t, Transform{K: 2, X: -50, Y: -50}, c.Transform())

	c.Pan(100, 0)
	assert.Equal(t, 0.0, c.Transform().X)
	c.Pan(-1000, 0)
	assert.Equal(t, -100.0, c.Transform().X)
	assert.Equal(t, -50.0, c.Transform().Y)
}

func TestPanOverscroll(t *testing.T) {
	c, _ := sized(t, 0.5, 100, 100)
	c.Pan(30, -20)
	assert.Equal(t, Transform{K: 1, X: 30, Y: -20}, c.Transform())
	c.Pan(50, -50)
	assert.Equal(t, Transform{K: 1, X: 50, Y: -50}, c.Transform())
}

func TestResetAndCallbacks(t *testing.T) {
	c, _ := sized(t, 0, 100, 100)
	var seen []Transform
	c.OnTransform = func(tr Transform) { seen = append(seen, tr) }

	c.ZoomTo(4, 0, 0)
	c.ZoomTo(4, 0, 0)
	c.Reset()
	require.Len(t, seen, 2, "unchanged transforms are not reported")
	assert.Equal(t, Identity, seen[1])
}

func TestTransformRoundTrip(t *testing.T) {
	tr := Transform{K: 3, X: -12, Y: 7}
	p := orb.Point{4, 5}
	assert.Equal(t, p, tr.Invert(tr.Apply(p)))
	assert.Equal(t, "translate(-12,7) scale(3)", tr.String())
}
