package geodata

import (
	"path/filepath"
	"strings"

	"tiny-explorers/internal/config"
)

// SourcesFromConfig：合并配置中的数据源；未配置的区域使用 Web 目录下的内置数据集
func SourcesFromConfig(cfg *config.Config) map[Region]string {
	out := make(map[Region]string, len(DefaultSources))
	for r, u := range DefaultSources {
		out[r] = filepath.Join(cfg.WebDist, filepath.FromSlash(strings.TrimPrefix(u, "/")))
	}
	for k, u := range cfg.Sources {
		r, err := ParseRegion(k)
		if err != nil || u == "" {
			continue
		}
		out[r] = u
	}
	return out
}

// NewProviderFromConfig：按配置组装提供者；shared 为空时不启用共享缓存层
func NewProviderFromConfig(cfg *config.Config, shared SharedCache) *Provider {
	return NewProvider(Options{
		Sources:       SourcesFromConfig(cfg),
		Fetcher:       NewFetcherFromConfig(cfg),
		Shared:        shared,
		AsiaRoster:    cfg.Catalog.AsiaRoster,
		IndiaNameKeys: cfg.Catalog.IndiaNameKeys,
	})
}
