package geodata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/xeipuuv/gojsonschema"
)

// FeatureCollection 的最小结构约束；几何细节交给 orb 解析
const collectionSchema = `{
  "type": "object",
  "required": ["type", "features"],
  "properties": {
    "type": {"enum": ["FeatureCollection"]},
    "features": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"enum": ["Feature"]},
          "properties": {"type": ["object", "null"]},
          "geometry": {"type": ["object", "null"]}
        }
      }
    }
  }
}`

var schema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(collectionSchema))
	if err != nil {
		panic(fmt.Sprintf("geodata: bad collection schema: %v", err))
	}
	schema = s
}

// ErrInvalidPayload：载荷不是合法的 GeoJSON FeatureCollection
var ErrInvalidPayload = errors.New("invalid geojson payload")

// Validate：结构校验；非法 JSON 与结构不符都返回包装 ErrInvalidPayload 的错误
func Validate(data []byte) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, d := range res.Errors() {
			msgs = append(msgs, d.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(msgs, "; "))
	}
	return nil
}

// Decode：校验并解析为要素集合；名称取 properties.name（字符串），其他属性原样保留
func Decode(region Region, data []byte) (*Collection, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	out := &Collection{Region: region, Features: make([]*Feature, 0, len(fc.Features))}
	for _, gf := range fc.Features {
		f := &Feature{ID: gf.ID, Properties: map[string]any(gf.Properties), Geometry: gf.Geometry}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		f.Name = stringProp(f.Properties, "name")
		out.Features = append(out.Features, f)
	}
	return out, nil
}

func stringProp(p map[string]any, k string) string {
	if v, ok := p[k].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
