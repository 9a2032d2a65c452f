package render

import (
	"fmt"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// 固定调色板：要素按在集合中的下标循环取色
var DefaultPalette = []string{
	"#FFADAD", "#FFD6A5", "#FDFFB6", "#CAFFBF", "#9BF6FF", "#A0C4FF", "#BDB2FF", "#FFC6FF",
}

var (
	SuccessColor = mustHex("#4ade80")
	ErrorColor   = mustHex("#ef4444")
	HintColor    = mustHex("#FDE047")
	OutlineColor = mustHex("#FFFFFF")
	LabelColor   = mustHex("#1f2937")
	OceanColor   = mustHex("#bae6fd")
)

// 高亮重着色的过渡时长
const TransitionDuration = 300 * time.Millisecond

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParsePalette：解析十六进制色值列表；空列表返回默认调色板
func ParsePalette(hexes []string) ([]colorful.Color, error) {
	if len(hexes) == 0 {
		hexes = DefaultPalette
	}
	out := make([]colorful.Color, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("palette color %q: %w", h, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// 文档注释：填充色过渡
// 背景：重着色与提示脉冲都不是瞬间切换，而是在 dur 内从当前显示色线性混合到目标色。
// 约束：新的过渡总是从“此刻显示的颜色”出发，被打断的过渡不会跳色。
type Fill struct {
	From, To colorful.Color
	Start    time.Time
	Dur      time.Duration
}

// At：now 时刻显示的颜色
func (f Fill) At(now time.Time) colorful.Color {
	if f.Dur <= 0 || !now.Before(f.Start.Add(f.Dur)) {
		return f.To
	}
	t := float64(now.Sub(f.Start)) / float64(f.Dur)
	if t <= 0 {
		return f.From
	}
	return f.From.BlendRgb(f.To, t).Clamped()
}

// Retarget：从当前显示色开始向 to 过渡；dur<=0 立即切换
func (f Fill) Retarget(to colorful.Color, now time.Time, dur time.Duration) Fill {
	from := f.At(now)
	if dur <= 0 {
		from = to
	}
	return Fill{From: from, To: to, Start: now, Dur: dur}
}

// Settled：过渡已结束
func (f Fill) Settled(now time.Time) bool {
	return f.Dur <= 0 || !now.Before(f.Start.Add(f.Dur))
}
