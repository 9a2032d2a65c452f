package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MapLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tinyexp_map_loads_total",
		Help: "Map dataset loads by region and result",
	}, []string{"region", "result"})
	MapCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tinyexp_map_cache_total",
		Help: "Map dataset cache lookups by tier and outcome",
	}, []string{"tier", "outcome"})
	MapFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tinyexp_map_fetch_duration_ms",
		Help:    "Dataset fetch duration in milliseconds",
		Buckets: []float64{5, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	FullDrawsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tinyexp_full_draws_total",
		Help: "Total full draw passes",
	})
	FullDrawDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tinyexp_full_draw_duration_ms",
		Help:    "Full draw duration in milliseconds",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})
	RestylesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tinyexp_restyles_total",
		Help: "Total fast restyle passes",
	})
	HitTestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tinyexp_hit_tests_total",
		Help: "Click hit tests by outcome",
	}, []string{"outcome"})
	HintStartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tinyexp_hint_starts_total",
		Help: "Hint pulse animations started",
	})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tinyexp_sessions_active",
		Help: "Live game sessions",
	})
	RoundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tinyexp_rounds_total",
		Help: "Find-mode clicks by region and result",
	}, []string{"region", "result"})
)

func init() {
	prometheus.MustRegister(MapLoadsTotal)
	prometheus.MustRegister(MapCacheTotal)
	prometheus.MustRegister(MapFetchDurationMs)
	prometheus.MustRegister(FullDrawsTotal)
	prometheus.MustRegister(FullDrawDurationMs)
	prometheus.MustRegister(RestylesTotal)
	prometheus.MustRegister(HitTestsTotal)
	prometheus.MustRegister(HintStartsTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(RoundsTotal)
}

// 文档注释：返回 Prometheus 指标处理器，在主入口挂载到 <API_BASE>/metrics
func Handler() http.Handler { return promhttp.Handler() }
