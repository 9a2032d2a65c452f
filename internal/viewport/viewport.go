// 包 viewport：容器尺寸观测与平移/缩放状态。
// 尺寸变化按帧合并并带容差提交；缩放比例限制在 [MinScale, MaxScale]，平移限制在带越界余量的范围内。
package viewport

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"

	"tiny-explorers/internal/eventloop"
)

const (
	MinScale = 1.0
	MaxScale = 8.0
	// 基础描边宽度，缩放后按 1/K 变细
	BaseStroke = 1.5
	// 一帧的合并窗口
	FrameInterval = 16 * time.Millisecond
	// 亚像素抖动容差
	Tolerance = 0.5
)

// Transform：屏幕坐标 = 内容坐标 × K + (X, Y)
type Transform struct {
	K, X, Y float64
}

// Identity：未缩放、未平移
var Identity = Transform{K: 1}

func (t Transform) Apply(p orb.Point) orb.Point {
	return orb.Point{p[0]*t.K + t.X, p[1]*t.K + t.Y}
}

func (t Transform) Invert(p orb.Point) orb.Point {
	return orb.Point{(p[0] - t.X) / t.K, (p[1] - t.Y) / t.K}
}

// String：SVG transform 属性值
func (t Transform) String() string {
	return fmt.Sprintf("translate(%g,%g) scale(%g)", t.X, t.Y, t.K)
}

// 文档注释：视口控制器
// 背景：宿主容器的尺寸通知可能在一帧内连续到达；控制器只在帧末提交最后一次读数，且变化超过容差才回调。
// 约束：所有方法须在事件循环协程上调用；平移/缩放不触发重新投影，只改变 Transform。
type Controller struct {
	clock      eventloop.Clock
	overscroll float64

	w, h         float64
	pendW, pendH float64
	frame        eventloop.Timer

	t Transform

	// OnResize：尺寸提交后回调
	OnResize func(w, h float64)
	// OnTransform：平移/缩放后回调
	OnTransform func(Transform)
}

func New(clock eventloop.Clock, overscroll float64) *Controller {
	if overscroll < 0 {
		overscroll = 0
	}
	return &Controller{clock: clock, overscroll: overscroll, t: Identity}
}

// Size：最近一次提交的尺寸
func (c *Controller) Size() (float64, float64) { return c.w, c.h }

// Observe：容器尺寸通知；同一帧内多次通知只保留最后一次
func (c *Controller) Observe(w, h float64) {
	c.pendW, c.pendH = w, h
	if c.frame != nil {
		return
	}
	c.frame = c.clock.AfterFunc(FrameInterval, c.commit)
}

func (c *Controller) commit() {
	c.frame = nil
	w, h := c.pendW, c.pendH
	if !(w > 0) || !(h > 0) {
		return
	}
	if math.Abs(w-c.w) <= Tolerance && math.Abs(h-c.h) <= Tolerance {
		return
	}
	c.w, c.h = w, h
	c.t = c.constrain(c.t)
	if c.OnResize != nil {
		c.OnResize(w, h)
	}
}

// Transform：当前变换
func (c *Controller) Transform() Transform { return c.t }

// StrokeWidth：描边宽度与缩放成反比，放大后轮廓不变粗
func (c *Controller) StrokeWidth() float64 { return BaseStroke / c.t.K }

// Zoom：以屏幕点 (cx, cy) 为锚点按倍率缩放
func (c *Controller) Zoom(factor, cx, cy float64) {
	if !(factor > 0) {
		return
	}
	c.ZoomTo(c.t.K*factor, cx, cy)
}

// ZoomTo：以屏幕点为锚点缩放到指定比例（钳制到 [1, 8]）
func (c *Controller) ZoomTo(k, cx, cy float64) {
	if math.IsNaN(k) {
		return
	}
	k = math.Max(MinScale, math.Min(MaxScale, k))
	anchor := c.t.Invert(orb.Point{cx, cy})
	c.set(Transform{K: k, X: cx - anchor[0]*k, Y: cy - anchor[1]*k})
}

// Pan：拖拽或多点触控产生的屏幕位移
func (c *Controller) Pan(dx, dy float64) {
	c.set(Transform{K: c.t.K, X: c.t.X + dx, Y: c.t.Y + dy})
}

// Reset：回到初始视图
func (c *Controller) Reset() { c.set(Identity) }

// Invert：屏幕点换算为内容坐标，用于点击判定
func (c *Controller) Invert(x, y float64) orb.Point { return c.t.Invert(orb.Point{x, y}) }

func (c *Controller) set(t Transform) {
	t = c.constrain(t)
	if t == c.t {
		return
	}
	c.t = t
	if c.OnTransform != nil {
		c.OnTransform(t)
	}
}

// constrain：保证视口不超出平移范围 [[-o·w,-o·h],[(1+o)·w,(1+o)·h]]；
// 内容比范围小时居中
func (c *Controller) constrain(t Transform) Transform {
	if c.w <= 0 || c.h <= 0 {
		return t
	}
	o := c.overscroll
	ex0, ey0 := -o*c.w, -o*c.h
	ex1, ey1 := (1+o)*c.w, (1+o)*c.h

	dx0 := (0-t.X)/t.K - ex0
	dx1 := (c.w-t.X)/t.K - ex1
	dy0 := (0-t.Y)/t.K - ey0
	dy1 := (c.h-t.Y)/t.K - ey1

	tx := pick(dx0, dx1)
	ty := pick(dy0, dy1)
	return Transform{K: t.K, X: t.X + t.K*tx, Y: t.Y + t.K*ty}
}

func pick(d0, d1 float64) float64 {
	if d1 > d0 {
		return (d0 + d1) / 2
	}
	if v := math.Min(0, d0); v != 0 {
		return v
	}
	return math.Max(0, d1)
}
