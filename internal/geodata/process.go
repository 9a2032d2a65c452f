package geodata

// 亚洲区域复用世界数据集，按名单精确匹配（区分大小写）过滤
var DefaultAsiaRoster = []string{
	"Afghanistan", "Armenia", "Azerbaijan", "Bahrain", "Bangladesh", "Bhutan", "Brunei",
	"Cambodia", "China", "Cyprus", "Georgia", "India", "Indonesia", "Iran", "Iraq", "Israel",
	"Japan", "Jordan", "Kazakhstan", "Kuwait", "Kyrgyzstan", "Laos", "Lebanon", "Malaysia",
	"Maldives", "Mongolia", "Myanmar", "Nepal", "North Korea", "Oman", "Pakistan", "Palestine",
	"Philippines", "Qatar", "Russia", "Saudi Arabia", "Singapore", "South Korea", "Sri Lanka",
	"Syria", "Taiwan", "Tajikistan", "Thailand", "Timor-Leste", "Turkey", "Turkmenistan",
	"United Arab Emirates", "Uzbekistan", "Vietnam", "Yemen",
}

// 印度邦数据集的名称字段不统一，按优先级取第一个非空值
var DefaultIndiaNameKeys = []string{"NAME_1", "name", "st_nm"}

// Processor：区域后处理；输入为调用方独占的副本，可原地修改
type Processor func(c *Collection) *Collection

// FilterRoster：保留名称在名单内的要素
func FilterRoster(roster []string) Processor {
	allow := make(map[string]struct{}, len(roster))
	for _, n := range roster {
		allow[n] = struct{}{}
	}
	return func(c *Collection) *Collection {
		kept := c.Features[:0]
		for _, f := range c.Features {
			if _, ok := allow[f.Name]; ok {
				kept = append(kept, f)
			}
		}
		c.Features = kept
		return c
	}
}

// NormalizeNames：按字段优先级重写显示名，并同步 properties.name
func NormalizeNames(keys []string) Processor {
	return func(c *Collection) *Collection {
		for _, f := range c.Features {
			name := ""
			for _, k := range keys {
				if v := stringProp(f.Properties, k); v != "" {
					name = v
					break
				}
			}
			f.Name = name
			if f.Properties == nil {
				f.Properties = map[string]any{}
			}
			f.Properties["name"] = name
		}
		return c
	}
}

func identity(c *Collection) *Collection { return c }
