package render

import (
	"strings"

	"github.com/paulmach/orb"

	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/projection"
)

const (
	// 世界地图初始视图里小岛国太多，阈值更严
	WorldLabelMinArea = 800.0
	LabelMinArea      = 300.0

	maxLabelRunes = 15
	keepRunes     = 12

	// 非正确要素在显示标签时的透明度
	LabelOpacity = 0.9
)

// LabelText：标签文字规则。
// 关闭标签时只有正确要素保留文字；投影面积低于阈值、位于屏外哨兵位置或无名称时为空；过长名称截断。
func LabelText(name string, area float64, centroid orb.Point, region geodata.Region, hl Highlight) string {
	if name == "" || centroid == projection.Offscreen {
		return ""
	}
	if !hl.ShowLabels && name != hl.Correct {
		return ""
	}
	threshold := LabelMinArea
	if region == geodata.World {
		threshold = WorldLabelMinArea
	}
	if !(area >= threshold) {
		return ""
	}
	return Truncate(name)
}

// Truncate：超过 15 个字符时保留前 12 个并追加 "..."
func Truncate(name string) string {
	r := []rune(name)
	if len(r) <= maxLabelRunes {
		return name
	}
	return string(r[:keepRunes]) + "..."
}

func labelOpacity(name string, hl Highlight) float64 {
	if MatchExact(name, hl.Correct) {
		return 1
	}
	if hl.ShowLabels {
		return LabelOpacity
	}
	return 0
}

func label(sh *Shape, region geodata.Region, hl Highlight) Label {
	return Label{
		Text:    LabelText(sh.Feature.Name, sh.Area, sh.Centroid, region, hl),
		Pos:     sh.Centroid,
		Opacity: labelOpacity(sh.Feature.Name, hl),
	}
}

// MatchExact：正确/错误高亮使用大小写敏感的精确匹配
func MatchExact(name, target string) bool {
	return target != "" && name == target
}

// MatchLoose：提示匹配。大小写不敏感相等，或任一方向的子串包含（不区分大小写），
// 用于吸收数据集命名不一致；一个名称是另一个的子串时会同时命中多个要素。
func MatchLoose(name, hint string) bool {
	name = strings.TrimSpace(name)
	hint = strings.TrimSpace(hint)
	if name == "" || hint == "" {
		return false
	}
	n, h := strings.ToLower(name), strings.ToLower(hint)
	return n == h || strings.Contains(n, h) || strings.Contains(h, n)
}
