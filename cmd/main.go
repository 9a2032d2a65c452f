// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tiny-explorers/internal/api"
	"tiny-explorers/internal/config"
	"tiny-explorers/internal/cues"
	"tiny-explorers/internal/facts"
	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/locate"
	"tiny-explorers/internal/logger"
	"tiny-explorers/internal/metrics"
	"tiny-explorers/internal/middleware"
	"tiny-explorers/internal/migrate"
	"tiny-explorers/internal/render"
	"tiny-explorers/internal/store"
	"tiny-explorers/internal/utils"
	"tiny-explorers/internal/version"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg, err := config.FromEnv()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)
	l.Debug("config_web_dir", "dir", cfg.WebDist)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 共享缓存层（可选）
	var shared geodata.SharedCache
	if rc := utils.OpenRedis(cfg.Redis); rc != nil {
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
			shared = geodata.NewRedisCache(rc, cfg.Redis.TTL)
		}
		defer rc.Close()
	} else {
		l.Info("redis_disabled")
	}

	provider := geodata.NewProviderFromConfig(cfg, shared)
	for _, r := range geodata.Regions() {
		l.Debug("map_source", "region", r, "url", provider.URL(r))
	}
	if cfg.Preload {
		go provider.Preload(ctx)
	}
	// SIGHUP：数据集文件更新后清空进程内缓存并重新预热；已打开的会话在 reload 动作后取到新数据
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				signal.Stop(hup)
				return
			case <-hup:
				l.Info("map_cache_invalidate")
				provider.Invalidate()
				provider.Preload(ctx)
			}
		}
	}()

	renderer, err := render.NewRenderer(cfg.Catalog.Palette)
	if err != nil {
		l.Error("palette_error", "err", err)
		renderer, _ = render.NewRenderer(nil)
	}

	table, err := facts.Load(cfg.FactsPath)
	if err != nil {
		l.Error("facts_load_error", "path", cfg.FactsPath, "err", err)
		table = facts.Builtin()
	}
	l.Info("facts_ready", "entries", table.Len())

	cueSvc := cues.NewService(64)
	cueSvc.Start()
	defer cueSvc.Stop()

	rounds := openRounds(l, cfg)

	srv := api.NewServer(api.Deps{
		Loader:       provider,
		Renderer:     renderer,
		Cues:         cueSvc,
		Facts:        table,
		Rounds:       rounds,
		Regions:      locate.NewResolver(openLocator(l, cfg)),
		Sources:      provider.URL,
		Overscroll:   cfg.Overscroll,
		FetchTimeout: cfg.FetchTimeout,
		SessionIdle:  cfg.SessionIdle,
	})
	go srv.Run(ctx, time.Minute)

	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, srv.Routes()))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.Handle("/", http.FileServer(http.Dir(cfg.WebDist)))
	// NOTE: 向前端暴露 API 基础路径，避免硬编码
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + cfg.APIBase + "'\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'\n"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, cfg.RateLimitQPS)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	if cfg.TLS.Enabled {
		if err := utils.EnsureSelfSignedCert(cfg.TLS.CertPath, cfg.TLS.KeyPath, "tiny-explorers.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLS.CertPath)
		err = s.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("server_stopped")
}

// openRounds：PG_ENABLE=true 时打开回合日志；任何失败都降级为不记录
func openRounds(l *slog.Logger, cfg *config.Config) api.RoundStore {
	if !cfg.PGEnabled {
		l.Info("round_log_disabled")
		return nil
	}
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		return nil
	}
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
		_ = db.Close()
		return nil
	}
	l.Info("db_ping_ok")
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		_ = db.Close()
		return nil
	}
	return store.AttachDB(db)
}

// openLocator：本地 IP 库链（GeoIP 优先，其次 ip2region）；均未配置时只依赖 CDN 国家头
func openLocator(l *slog.Logger, cfg *config.Config) locate.Locator {
	var list []locate.Locator
	if cfg.GeoIPPath != "" {
		if g, err := locate.OpenGeoIP(cfg.GeoIPPath); err == nil {
			list = append(list, g)
			l.Info("geoip_ready", "path", cfg.GeoIPPath)
		} else {
			l.Error("geoip_open_error", "err", err)
		}
	}
	if cfg.IP2RegionPath != "" {
		if c, err := locate.OpenIP2Region(cfg.IP2RegionPath); err == nil {
			list = append(list, c)
			l.Info("ip2region_ready", "path", cfg.IP2RegionPath)
		} else {
			l.Error("ip2region_error", "err", err)
		}
	}
	if len(list) == 0 {
		return nil
	}
	return locate.NewChain(list...)
}
