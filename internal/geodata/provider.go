package geodata

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tiny-explorers/internal/logger"
	"tiny-explorers/internal/metrics"
)

// 默认数据源：亚洲复用世界数据集
var DefaultSources = map[Region]string{
	World: "/assets/maps/world.geojson",
	Asia:  "/assets/maps/world.geojson",
	India: "/assets/maps/india.geojson",
}

// Options：提供者配置；零值字段使用内置默认
type Options struct {
	Sources       map[Region]string
	Fetcher       Fetcher
	Shared        SharedCache
	AsiaRoster    []string
	IndiaNameKeys []string
}

// 文档注释：数据集提供者
// 背景：两级进程内缓存：原始层按数据源地址（世界与亚洲共享一次拉取），加工层按区域（后处理只执行一次）；
// 可选 Redis 共享层位于网络之前。同一地址的并发请求合并为一次拉取。
// 约束：所有返回值均为深拷贝；缓存生命周期与进程一致，Invalidate 可手动清空。
type Provider struct {
	sources map[Region]string
	fetcher Fetcher
	shared  SharedCache
	procs   map[Region]Processor

	mu        sync.Mutex
	raw       map[string]*Collection
	processed map[Region]*Collection
	group     singleflight.Group
}

func NewProvider(opts Options) *Provider {
	p := &Provider{
		sources:   make(map[Region]string, len(DefaultSources)),
		fetcher:   opts.Fetcher,
		shared:    opts.Shared,
		raw:       map[string]*Collection{},
		processed: map[Region]*Collection{},
	}
	for r, u := range DefaultSources {
		p.sources[r] = u
	}
	for r, u := range opts.Sources {
		if u != "" {
			p.sources[r] = u
		}
	}
	if p.fetcher == nil {
		p.fetcher = &SchemeFetcher{HTTP: &HTTPFetcher{}, File: FileFetcher{}}
	}
	roster := opts.AsiaRoster
	if len(roster) == 0 {
		roster = DefaultAsiaRoster
	}
	keys := opts.IndiaNameKeys
	if len(keys) == 0 {
		keys = DefaultIndiaNameKeys
	}
	p.procs = map[Region]Processor{
		World: identity,
		Asia:  FilterRoster(roster),
		India: NormalizeNames(keys),
	}
	return p
}

// URL：区域解析后的数据源地址
func (p *Provider) URL(region Region) string { return p.sources[region] }

// Collection：获取区域要素集合（深拷贝）；失败返回 *LoadError
func (p *Provider) Collection(ctx context.Context, region Region) (*Collection, error) {
	p.mu.Lock()
	if c, ok := p.processed[region]; ok {
		p.mu.Unlock()
		metrics.MapCacheTotal.WithLabelValues("processed", "hit").Inc()
		return c.Clone(), nil
	}
	p.mu.Unlock()
	metrics.MapCacheTotal.WithLabelValues("processed", "miss").Inc()

	u, ok := p.sources[region]
	if !ok {
		return nil, &LoadError{Region: region, URL: "", Err: errUnknownRegion}
	}
	raw, err := p.rawCollection(ctx, region, u)
	if err != nil {
		metrics.MapLoadsTotal.WithLabelValues(string(region), "error").Inc()
		logger.L().Error("map_load_error", "region", region, "url", u, "err", err)
		return nil, &LoadError{Region: region, URL: u, Err: err}
	}
	proc := p.procs[region]
	if proc == nil {
		proc = identity
	}
	c := proc(raw.Clone())
	c.Region = region

	p.mu.Lock()
	if prev, ok := p.processed[region]; ok {
		c = prev
	} else {
		p.processed[region] = c
	}
	p.mu.Unlock()
	metrics.MapLoadsTotal.WithLabelValues(string(region), "ok").Inc()
	logger.L().Debug("map_load_ok", "region", region, "features", c.Len())
	return c.Clone(), nil
}

func (p *Provider) rawCollection(ctx context.Context, region Region, u string) (*Collection, error) {
	p.mu.Lock()
	if c, ok := p.raw[u]; ok {
		p.mu.Unlock()
		metrics.MapCacheTotal.WithLabelValues("raw", "hit").Inc()
		return c, nil
	}
	p.mu.Unlock()
	metrics.MapCacheTotal.WithLabelValues("raw", "miss").Inc()

	v, err, _ := p.group.Do(u, func() (any, error) {
		p.mu.Lock()
		if c, ok := p.raw[u]; ok {
			p.mu.Unlock()
			return c, nil
		}
		p.mu.Unlock()
		data, err := p.fetchBytes(ctx, u)
		if err != nil {
			return nil, err
		}
		c, err := Decode(region, data)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.raw[u] = c
		p.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Collection), nil
}

func (p *Provider) fetchBytes(ctx context.Context, u string) ([]byte, error) {
	if p.shared != nil {
		if b, ok := p.shared.Get(ctx, u); ok && Validate(b) == nil {
			metrics.MapCacheTotal.WithLabelValues("shared", "hit").Inc()
			return b, nil
		}
		metrics.MapCacheTotal.WithLabelValues("shared", "miss").Inc()
	}
	t0 := time.Now()
	b, err := p.fetcher.Fetch(ctx, u)
	metrics.MapFetchDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		return nil, err
	}
	if p.shared != nil && Validate(b) == nil {
		p.shared.Set(ctx, u, b)
	}
	return b, nil
}

// Preload：后台预热所有区域；失败仅记录日志
func (p *Provider) Preload(ctx context.Context) {
	var wg sync.WaitGroup
	for _, r := range Regions() {
		wg.Add(1)
		go func(r Region) {
			defer wg.Done()
			if _, err := p.Collection(ctx, r); err != nil {
				logger.L().Warn("map_preload_failed", "region", r, "err", err)
			}
		}(r)
	}
	wg.Wait()
}

// Invalidate：清空进程内缓存；共享层（Redis）仍按 TTL 过期
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raw = map[string]*Collection{}
	p.processed = map[Region]*Collection{}
}
