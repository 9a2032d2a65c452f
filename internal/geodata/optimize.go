package geodata

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：坐标精简
// 背景：原始行政区划数据常带 8 位以上小数，体积是渲染所需的数倍；保留 3 位（约百米）对儿童地图足够。
// 约束：只改写几何坐标，属性与要素顺序不变；载荷须先通过结构校验。
func RoundCoordinates(data []byte, decimals int) ([]byte, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("decimals must be >= 0, got %d", decimals)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	f := math.Pow(10, float64(decimals))
	for _, gf := range fc.Features {
		if gf.Geometry != nil {
			gf.Geometry = roundGeometry(gf.Geometry, f)
		}
	}
	return fc.MarshalJSON()
}

func roundPoint(p orb.Point, f float64) orb.Point {
	return orb.Point{math.Round(p[0]*f) / f, math.Round(p[1]*f) / f}
}

func roundPoints(ps []orb.Point, f float64) {
	for i := range ps {
		ps[i] = roundPoint(ps[i], f)
	}
}

func roundGeometry(g orb.Geometry, f float64) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		return roundPoint(g, f)
	case orb.MultiPoint:
		roundPoints(g, f)
	case orb.LineString:
		roundPoints(g, f)
	case orb.MultiLineString:
		for _, ls := range g {
			roundPoints(ls, f)
		}
	case orb.Ring:
		roundPoints(g, f)
	case orb.Polygon:
		for _, r := range g {
			roundPoints(r, f)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			for _, r := range p {
				roundPoints(r, f)
			}
		}
	case orb.Collection:
		for i := range g {
			g[i] = roundGeometry(g[i], f)
		}
	}
	return g
}
