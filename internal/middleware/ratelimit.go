// 包 middleware：入口限流与客户端信息注入
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"tiny-explorers/internal/logger"
)

// 文档注释：令牌桶限流（每秒）
// 背景：帧图片与点击请求都很轻，但恶意刷新会把渲染协程压满；超限直接返回 429。
// 约束：简化实现，不做排队；容量即每秒请求数。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
	mu       sync.Mutex
}

func NewTokenBucket(qps int) *TokenBucket {
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

func (tb *TokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// ClientInfo：请求来源，供默认区域推断使用
type ClientInfo struct {
	IP      string
	Country string
}

type ctxKey struct{}

// FromContext：读取 Wrap 注入的客户端信息；未注入时为空值
func FromContext(ctx context.Context) ClientInfo {
	ci, _ := ctx.Value(ctxKey{}).(ClientInfo)
	return ci
}

// Wrap：注入客户端信息；qps > 0 时启用限流
func Wrap(next http.Handler, qps int) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ci := parseClient(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, ci)))
	})
	if qps <= 0 {
		return h
	}
	tb := NewTokenBucket(qps)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.allow() {
			logger.L().Debug("rate_limited", "path", r.URL.Path)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// 文档注释：解析客户端 IP 与 CDN 国家代码
// 背景：部署在 EdgeOne / Cloudflare 之后时真实 IP 与国家由边缘节点改写到请求头；直连时使用 RemoteAddr。
// 约束：X-Forwarded-For 取第一个；国家代码统一大写，非两位字母时丢弃。
func parseClient(r *http.Request) ClientInfo {
	h := r.Header
	var ci ClientInfo
	switch {
	case h.Get("X-EO-Client-IP") != "":
		ci.IP = h.Get("X-EO-Client-IP")
	case h.Get("X-Forwarded-For") != "":
		ci.IP = strings.TrimSpace(strings.Split(h.Get("X-Forwarded-For"), ",")[0])
	case h.Get("X-Real-IP") != "":
		ci.IP = h.Get("X-Real-IP")
	default:
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ci.IP = host
	}
	cc := h.Get("X-EO-Geo-CountryCodeAlpha2")
	if cc == "" {
		cc = h.Get("CF-IPCountry")
	}
	cc = strings.ToUpper(strings.TrimSpace(cc))
	if len(cc) == 2 && cc != "XX" {
		ci.Country = cc
	}
	return ci
}
