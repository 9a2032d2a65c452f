// 包 config：集中读取环境变量与可选的地图目录文件（YAML），主入口与工具共用
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 文档注释：地图目录文件
// 背景：数据源地址、亚洲名单、印度名称字段与调色板可在不重新编译的情况下调整。
// 约束：未出现的字段保持内置默认值；区域键大小写不敏感（WORLD/ASIA/INDIA）。
type Catalog struct {
	Sources       map[string]string `yaml:"sources"`
	AsiaRoster    []string          `yaml:"asia_roster"`
	IndiaNameKeys []string          `yaml:"india_name_keys"`
	Palette       []string          `yaml:"palette"`
}

// Redis：共享原始数据缓存层
type Redis struct {
	Enabled bool
	Addr    string
	Pass    string
	DB      int
	TTL     time.Duration
}

// Minio：s3:// 数据源
type Minio struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// TLS：可选 HTTPS，证书缺失时生成自签名证书
type TLS struct {
	Enabled  bool
	CertPath string
	KeyPath  string
}

type Config struct {
	Addr          string
	APIBase       string
	WebDist       string
	Sources       map[string]string
	Catalog       Catalog
	Preload       bool
	FetchTimeout  time.Duration
	Overscroll    float64
	Redis         Redis
	PGEnabled     bool
	Minio         Minio
	GeoIPPath     string
	IP2RegionPath string
	FactsPath     string
	RateLimitQPS  int
	SessionIdle   time.Duration
	TLS           TLS
}

// FromEnv：读取环境变量构建配置；MAP_CATALOG 指向的 YAML 解析失败时返回错误
func FromEnv() (*Config, error) {
	c := &Config{
		Addr:         getenv("ADDR", ":8080"),
		APIBase:      getenv("API_BASE", "/api"),
		WebDist:      getenv("WEB_DIST", filepath.Join("web", "dist")),
		Sources:      map[string]string{},
		Preload:      getenv("MAP_PRELOAD", "true") == "true",
		FetchTimeout: time.Duration(getint("MAP_FETCH_TIMEOUT_MS", 10000)) * time.Millisecond,
		Overscroll:   getfloat("VIEW_OVERSCROLL", 0),
		PGEnabled:    os.Getenv("PG_ENABLE") == "true",
		GeoIPPath:    os.Getenv("GEOIP_PATH"),
	}
	c.IP2RegionPath = os.Getenv("IP2REGION_V4_PATH")
	c.FactsPath = os.Getenv("FACTS_PATH")
	c.RateLimitQPS = getint("RATE_LIMIT_QPS", 0)
	c.SessionIdle = time.Duration(getint("SESSION_IDLE_S", 1800)) * time.Second
	c.TLS = TLS{
		Enabled:  os.Getenv("TLS_ENABLE") == "true",
		CertPath: getenv("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		KeyPath:  getenv("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
	}
	if p := os.Getenv("MAP_CATALOG"); p != "" {
		cat, err := LoadCatalog(p)
		if err != nil {
			return nil, err
		}
		c.Catalog = *cat
		for k, v := range cat.Sources {
			c.Sources[strings.ToUpper(k)] = v
		}
	}
	for _, r := range []string{"WORLD", "ASIA", "INDIA"} {
		if v := os.Getenv("MAP_URL_" + r); v != "" {
			c.Sources[r] = v
		}
	}
	c.Redis = Redis{
		Enabled: os.Getenv("REDIS_ENABLE") == "true",
		Addr:    getenv("REDIS_HOST", "127.0.0.1") + ":" + getenv("REDIS_PORT", "6379"),
		Pass:    os.Getenv("REDIS_PASS"),
		DB:      getint("REDIS_DB", 0),
		TTL:     time.Duration(getint("MAP_REDIS_TTL_S", 86400)) * time.Second,
	}
	c.Minio = Minio{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	}
	return c, nil
}

// LoadCatalog：读取并解析地图目录文件
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(b, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &cat, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}
