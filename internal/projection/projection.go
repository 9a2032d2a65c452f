// Package projection fits a spherical Mercator projection to a feature set and a pixel
// rectangle, and turns features into screen-space paths, centroids and areas.
//
// The projection only depends on (features, width, height). Pan and zoom are applied as a
// transform on top of the projected paths and never trigger a refit.
package projection

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"tiny-explorers/internal/geodata"
)

// maxLat keeps Mercator y finite near the poles.
const maxLat = 85.05112878

// Offscreen is the label anchor for features whose centroid cannot be computed.
var Offscreen = orb.Point{-9999, -9999}

var (
	ErrBadSize  = errors.New("projection: width and height must be positive")
	ErrNoCoords = errors.New("projection: no finite coordinates to fit")
)

// Projection maps [lon, lat] to pixels.
type Projection struct {
	Width, Height float64
	k, tx, ty     float64
}

func mercator(lon, lat float64) (float64, float64) {
	lat = math.Max(-maxLat, math.Min(maxLat, lat))
	x := lon * math.Pi / 180
	y := -math.Log(math.Tan(math.Pi/4 + lat*math.Pi/360))
	return x, y
}

// 文档注释：按要素集合与像素尺寸拟合投影
// 背景：等比缩放（不拉伸），所有要素外包框的并集恰好贴合 [0,w]×[0,h]，富余的轴居中。
// 约束：w、h 必须为正；没有任何有限坐标时返回 ErrNoCoords。
func Fit(features []*geodata.Feature, w, h float64) (*Projection, error) {
	if !(w > 0) || !(h > 0) {
		return nil, ErrBadSize
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, f := range features {
		for _, poly := range polygons(f) {
			for _, ring := range poly {
				for _, pt := range ring {
					if !finite(pt[0]) || !finite(pt[1]) {
						continue
					}
					x, y := mercator(pt[0], pt[1])
					minX, maxX = math.Min(minX, x), math.Max(maxX, x)
					minY, maxY = math.Min(minY, y), math.Max(maxY, y)
				}
			}
		}
	}
	if math.IsInf(minX, 1) {
		return nil, ErrNoCoords
	}
	dx, dy := maxX-minX, maxY-minY
	k := 1.0
	switch {
	case dx > 0 && dy > 0:
		k = math.Min(w/dx, h/dy)
	case dx > 0:
		k = w / dx
	case dy > 0:
		k = h / dy
	}
	return &Projection{
		Width:  w,
		Height: h,
		k:      k,
		tx:     (w-k*dx)/2 - k*minX,
		ty:     (h-k*dy)/2 - k*minY,
	}, nil
}

// Point projects one geographic coordinate.
func (p *Projection) Point(lon, lat float64) orb.Point {
	x, y := mercator(lon, lat)
	return orb.Point{p.k*x + p.tx, p.k*y + p.ty}
}

// Path is the screen-space outline of a feature, usable for fill and containment.
// Non-polygonal or missing geometry yields an empty path.
func (p *Projection) Path(f *geodata.Feature) orb.MultiPolygon {
	src := polygons(f)
	out := make(orb.MultiPolygon, 0, len(src))
	for _, poly := range src {
		np := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			nr := make(orb.Ring, 0, len(ring))
			for _, pt := range ring {
				if !finite(pt[0]) || !finite(pt[1]) {
					continue
				}
				nr = append(nr, p.Point(pt[0], pt[1]))
			}
			np = append(np, nr)
		}
		out = append(out, np)
	}
	return out
}

// Shape bundles the per-feature values the renderer needs.
type Shape struct {
	Path     orb.MultiPolygon
	Bound    orb.Bound
	Area     float64
	Centroid orb.Point
}

// 文档注释：单次投影并派生外包框、面积与质心
// 约束：面积为零或非有限（退化/畸形几何）时质心取 Offscreen，标签永远不会拿到 NaN 坐标。
func (p *Projection) Measure(f *geodata.Feature) Shape {
	path := p.Path(f)
	s := Shape{Path: path, Centroid: Offscreen}
	if len(path) == 0 {
		return s
	}
	s.Bound = path.Bound()
	c, area := planar.CentroidArea(path)
	area = math.Abs(area) // 屏幕坐标 y 轴翻转，环方向随之反转
	if !finite(area) || area <= 0 {
		return s
	}
	s.Area = area
	if finite(c[0]) && finite(c[1]) {
		s.Centroid = c
	}
	return s
}

// Centroid of a feature in pixels, or Offscreen.
func (p *Projection) Centroid(f *geodata.Feature) orb.Point { return p.Measure(f).Centroid }

// Area of a feature in square pixels.
func (p *Projection) Area(f *geodata.Feature) float64 { return p.Measure(f).Area }

func (p *Projection) Bound(f *geodata.Feature) orb.Bound { return p.Measure(f).Bound }

func polygons(f *geodata.Feature) orb.MultiPolygon {
	if f == nil || f.Geometry == nil {
		return nil
	}
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}
	case orb.MultiPolygon:
		return g
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
