// 包 locate：按客户端 IP 推断默认地图区域（印度 → INDIA，亚洲国家 → ASIA，其余 → WORLD）
package locate

import (
	"net"
	"strings"

	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/logger"

	"github.com/lionsoul2014/ip2region/binding/golang/xdb"
	"github.com/oschwald/geoip2-golang"
)

// Locator：IP → ISO 3166-1 alpha-2 国家代码
type Locator interface {
	Country(ip string) (string, bool)
}

// GeoIP：MaxMind mmdb（GeoLite2-Country / City 均可）
type GeoIP struct {
	r *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIP, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIP{r: r}, nil
}

func (g *GeoIP) Country(ip string) (string, bool) {
	p := net.ParseIP(strings.TrimSpace(ip))
	if p == nil {
		return "", false
	}
	rec, err := g.r.Country(p)
	if err != nil || rec.Country.IsoCode == "" {
		return "", false
	}
	return strings.ToUpper(rec.Country.IsoCode), true
}

func (g *GeoIP) Close() error { return g.r.Close() }

// IP2Region：ip2region xdb（仅 IPv4 文件）
type IP2Region struct {
	s *xdb.Searcher
}

func OpenIP2Region(v4Path string) (*IP2Region, error) {
	s, err := xdb.NewWithFileOnly(xdb.IPv4, v4Path)
	if err != nil {
		return nil, err
	}
	return &IP2Region{s: s}, nil
}

func (c *IP2Region) Country(ip string) (string, bool) {
	if ip == "" {
		return "", false
	}
	region, err := c.s.SearchByStr(ip)
	if err != nil || region == "" {
		return "", false
	}
	return countryFromRegion(region)
}

func (c *IP2Region) Close() { c.s.Close() }

// countryFromRegion：解析 "国家|区域|省份|城市|ISP" 文本；带 ISO 代码字段时直接采用
func countryFromRegion(s string) (string, bool) {
	parts := strings.Split(s, "|")
	for _, p := range parts {
		if isISO(p) {
			return p, true
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	code, ok := countryNames[strings.ToLower(strings.TrimSpace(parts[0]))]
	return code, ok
}

func isISO(s string) bool {
	if len(s) != 2 {
		return false
	}
	return s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
}

// ip2region 常见的国家名写法
var countryNames = map[string]string{
	"中国": "CN", "china": "CN",
	"印度": "IN", "india": "IN",
	"日本": "JP", "japan": "JP",
	"韩国": "KR", "south korea": "KR",
	"新加坡": "SG", "singapore": "SG",
	"泰国": "TH", "thailand": "TH",
	"越南": "VN", "vietnam": "VN",
	"印度尼西亚": "ID", "indonesia": "ID",
	"俄罗斯": "RU", "russia": "RU",
	"美国": "US", "united states": "US",
	"英国": "GB", "united kingdom": "GB",
	"德国": "DE", "germany": "DE",
	"法国": "FR", "france": "FR",
	"巴西": "BR", "brazil": "BR",
	"澳大利亚": "AU", "australia": "AU",
	"加拿大": "CA", "canada": "CA",
}

// Chain：按顺序查询，首个命中即返回
type Chain struct {
	list []Locator
}

func NewChain(list ...Locator) *Chain {
	c := &Chain{}
	for _, l := range list {
		if l != nil {
			c.list = append(c.list, l)
		}
	}
	return c
}

func (c *Chain) Country(ip string) (string, bool) {
	for _, l := range c.list {
		if code, ok := l.Country(ip); ok {
			return code, true
		}
	}
	return "", false
}

func (c *Chain) Len() int { return len(c.list) }

// 亚洲国家与地区（ISO 3166-1 alpha-2）
var asia = map[string]bool{
	"AF": true, "AM": true, "AZ": true, "BH": true, "BD": true, "BT": true, "BN": true, "KH": true,
	"CN": true, "CY": true, "GE": true, "HK": true, "ID": true, "IR": true, "IQ": true, "IL": true,
	"JP": true, "JO": true, "KZ": true, "KW": true, "KG": true, "LA": true, "LB": true, "MO": true,
	"MY": true, "MV": true, "MN": true, "MM": true, "NP": true, "KP": true, "OM": true, "PK": true,
	"PS": true, "PH": true, "QA": true, "SA": true, "SG": true, "KR": true, "LK": true, "SY": true,
	"TW": true, "TJ": true, "TH": true, "TL": true, "TR": true, "TM": true, "AE": true, "UZ": true,
	"VN": true, "YE": true,
}

// RegionFor：国家代码 → 默认区域；未知代码回落 WORLD
func RegionFor(code string) geodata.Region {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch {
	case code == "IN":
		return geodata.India
	case asia[code]:
		return geodata.Asia
	}
	return geodata.World
}

// 文档注释：默认区域解析器
// 背景：CDN 已给出国家代码时优先采用（无需本地库）；否则查询本地 IP 库链。
// 约束：解析失败一律回落 WORLD，不报错。
type Resolver struct {
	loc Locator
}

func NewResolver(loc Locator) *Resolver { return &Resolver{loc: loc} }

func (r *Resolver) Region(ip, hintCountry string) geodata.Region {
	if isISO(strings.ToUpper(hintCountry)) {
		return RegionFor(hintCountry)
	}
	if r == nil || r.loc == nil {
		return geodata.World
	}
	code, ok := r.loc.Country(ip)
	if !ok {
		logger.L().Debug("locate_miss", "ip", ip)
		return geodata.World
	}
	return RegionFor(code)
}
