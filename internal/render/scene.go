// 包 render：地图场景的全量绘制与快速重着色。
// 全量绘制在数据集或投影尺寸变化时重建全部形状与标签；快速重着色只改填充色与标签可见性，不触碰几何。
package render

import (
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"

	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/logger"
	"tiny-explorers/internal/metrics"
	"tiny-explorers/internal/projection"
)

// Highlight：由游戏外壳提供的只读高亮状态，按名称引用要素
type Highlight struct {
	Correct    string
	Error      string
	Hint       string
	ShowLabels bool
}

// Label：绘制在要素质心处的文字
type Label struct {
	Text    string
	Pos     orb.Point
	Opacity float64
}

// 文档注释：场景中的单个形状
// 背景：Base 由要素下标决定，与高亮无关；Resting 为最近一次重着色得出的“静止色”（正确/错误/基础色），
// 提示脉冲结束时回到 Resting。
type Shape struct {
	Index   int
	Feature *geodata.Feature
	projection.Shape

	Base    colorful.Color
	Resting colorful.Color
	Fill    Fill
	Label   Label

	rect *rtreego.Rect
}

// Bounds：rtreego.Spatial
func (s *Shape) Bounds() *rtreego.Rect { return s.rect }

// Color：now 时刻的填充色
func (s *Shape) Color(now time.Time) colorful.Color { return s.Fill.At(now) }

// Animate：从当前显示色过渡到 to
func (s *Shape) Animate(to colorful.Color, now time.Time, dur time.Duration) {
	s.Fill = s.Fill.Retarget(to, now, dur)
}

// Scene：一次全量绘制的结果；重着色与点击判定都作用于最近一次的场景
type Scene struct {
	Region        geodata.Region
	Width, Height float64
	Shapes        []*Shape
	Highlight     Highlight

	tree *rtreego.Rtree
}

// Renderer：持有调色板
type Renderer struct {
	Palette []colorful.Color
}

// NewRenderer：hexes 为空时使用默认调色板
func NewRenderer(hexes []string) (*Renderer, error) {
	p, err := ParsePalette(hexes)
	if err != nil {
		return nil, err
	}
	return &Renderer{Palette: p}, nil
}

// BaseColor：palette[index mod len]
func (r *Renderer) BaseColor(i int) colorful.Color {
	return r.Palette[i%len(r.Palette)]
}

// 文档注释：全量绘制
// 背景：每个要素生成一个形状（基础色按下标取自调色板）与一个标签；形状按投影外包框建 R 树供点击判定。
// 约束：初始填充按重着色规则直接落定，不做过渡；退化几何的要素仍绘制轮廓，但标签为空。
func (r *Renderer) Draw(c *geodata.Collection, p *projection.Projection, hl Highlight, now time.Time) *Scene {
	t0 := time.Now()
	s := &Scene{
		Region:    c.Region,
		Width:     p.Width,
		Height:    p.Height,
		Shapes:    make([]*Shape, 0, c.Len()),
		Highlight: hl,
		tree:      rtreego.NewTree(2, 8, 32),
	}
	for i, f := range c.Features {
		sh := &Shape{Index: i, Feature: f, Shape: p.Measure(f), Base: r.BaseColor(i)}
		sh.Resting = restingColor(sh, hl)
		sh.Fill = Fill{From: sh.Resting, To: sh.Resting, Start: now}
		sh.Label = label(sh, s.Region, hl)
		s.Shapes = append(s.Shapes, sh)
		if len(sh.Path) > 0 && !sh.Bound.IsEmpty() {
			sh.rect = boundRect(sh.Bound)
			s.tree.Insert(sh)
		}
	}
	metrics.FullDrawsTotal.Inc()
	metrics.FullDrawDurationMs.Observe(float64(time.Since(t0).Microseconds()) / 1000)
	logger.L().Debug("map_full_draw", "region", s.Region, "shapes", len(s.Shapes), "w", s.Width, "h", s.Height)
	return s
}

// 文档注释：快速重着色
// 背景：只改填充色（300ms 过渡）与标签文字/透明度；几何、投影与 R 树不变。
// 约束：nil 场景（尚未完成全量绘制）为空操作。
func (s *Scene) Restyle(hl Highlight, now time.Time) {
	if s == nil {
		return
	}
	s.Highlight = hl
	for _, sh := range s.Shapes {
		sh.Resting = restingColor(sh, hl)
		sh.Animate(sh.Resting, now, TransitionDuration)
		sh.Label = label(sh, s.Region, hl)
	}
	metrics.RestylesTotal.Inc()
}

// Matching：按提示名称宽松匹配的形状
func (s *Scene) Matching(hint string) []*Shape {
	if s == nil || hint == "" {
		return nil
	}
	var out []*Shape
	for _, sh := range s.Shapes {
		if MatchLoose(sh.Feature.Name, hint) {
			out = append(out, sh)
		}
	}
	return out
}

// Find：按名称精确查找
func (s *Scene) Find(name string) *Shape {
	if s == nil {
		return nil
	}
	for _, sh := range s.Shapes {
		if MatchExact(sh.Feature.Name, name) {
			return sh
		}
	}
	return nil
}

// Settled：所有过渡都已结束
func (s *Scene) Settled(now time.Time) bool {
	if s == nil {
		return true
	}
	for _, sh := range s.Shapes {
		if !sh.Fill.Settled(now) {
			return false
		}
	}
	return true
}

func restingColor(sh *Shape, hl Highlight) colorful.Color {
	switch {
	case MatchExact(sh.Feature.Name, hl.Correct):
		return SuccessColor
	case MatchExact(sh.Feature.Name, hl.Error):
		return ErrorColor
	}
	return sh.Base
}

func boundRect(b orb.Bound) *rtreego.Rect {
	const minSide = 1e-9
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < minSide {
		w = minSide
	}
	if h < minSide {
		h = minSide
	}
	r, err := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
	if err != nil {
		// 边长已保证为正
		panic(err)
	}
	return r
}
