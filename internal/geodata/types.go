// 包 geodata：地图数据集提供者。按区域解析数据源、拉取 GeoJSON、校验、区域后处理并缓存；
// 对外始终返回深拷贝，渲染层对要素的原地修改不会污染缓存。
package geodata

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// Region：三个固定数据集
type Region string

const (
	World Region = "WORLD"
	Asia  Region = "ASIA"
	India Region = "INDIA"
)

// Regions：全部已知区域，顺序稳定
func Regions() []Region { return []Region{World, Asia, India} }

// ParseRegion：大小写不敏感解析
func ParseRegion(s string) (Region, error) {
	switch Region(strings.ToUpper(strings.TrimSpace(s))) {
	case World:
		return World, nil
	case Asia:
		return Asia, nil
	case India:
		return India, nil
	}
	return "", fmt.Errorf("unknown region %q", s)
}

// 文档注释：单个地理要素（国家/邦）
// 背景：Name 为显示与匹配键（已按区域规范化）；Properties 原样透传；Geometry 为 Polygon 或 MultiPolygon，坐标 [lon, lat]。
// 约束：Name 为空的要素不可点击、不显示标签。
type Feature struct {
	ID         any
	Name       string
	Properties map[string]any
	Geometry   orb.Geometry
}

// Selectable：名称非空才参与点击与标签
func (f *Feature) Selectable() bool { return f != nil && f.Name != "" }

// Clone：深拷贝，包括几何与嵌套属性
func (f *Feature) Clone() *Feature {
	if f == nil {
		return nil
	}
	out := &Feature{ID: f.ID, Name: f.Name, Properties: cloneMap(f.Properties)}
	if f.Geometry != nil {
		out.Geometry = orb.Clone(f.Geometry)
	}
	return out
}

// Collection：某区域的有序要素集合
type Collection struct {
	Region   Region
	Features []*Feature
}

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Features)
}

// Clone：深拷贝整个集合
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	out := &Collection{Region: c.Region, Features: make([]*Feature, len(c.Features))}
	for i, f := range c.Features {
		out.Features[i] = f.Clone()
	}
	return out
}

// Names：按顺序返回要素名称
func (c *Collection) Names() []string {
	out := make([]string, 0, c.Len())
	if c == nil {
		return out
	}
	for _, f := range c.Features {
		out = append(out, f.Name)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		arr := make([]any, len(x))
		for i := range x {
			arr[i] = cloneValue(x[i])
		}
		return arr
	default:
		return v
	}
}
