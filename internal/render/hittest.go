package render

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/metrics"
)

const hitTolerance = 1e-6

// 文档注释：点击判定
// 背景：先用 R 树按外包框筛选候选，再对候选做点在多边形内判定；重叠时取最后绘制（最上层）的形状。
// 约束：pt 为内容坐标（已按视口变换反算）；无名称要素不可点击；未命中返回 nil。
func (s *Scene) HitTest(pt orb.Point) *Shape {
	if s == nil || s.tree == nil {
		return nil
	}
	var top *Shape
	for _, obj := range s.tree.SearchIntersect(rtreego.Point{pt[0], pt[1]}.ToRect(hitTolerance)) {
		sh := obj.(*Shape)
		if !sh.Feature.Selectable() {
			continue
		}
		if top != nil && sh.Index < top.Index {
			continue
		}
		if planar.MultiPolygonContains(sh.Path, pt) {
			top = sh
		}
	}
	if top == nil {
		metrics.HitTestsTotal.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.HitTestsTotal.WithLabelValues("hit").Inc()
	return top
}

// FeatureAt：命中要素本身（完整要素，不只是名称）
func (s *Scene) FeatureAt(pt orb.Point) *geodata.Feature {
	if sh := s.HitTest(pt); sh != nil {
		return sh.Feature
	}
	return nil
}
