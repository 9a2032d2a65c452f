package logger

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// statusWriter：记录状态码与字节数
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Hijack：websocket 升级需要底层连接
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// AccessMiddleware：访问日志中间件
// 背景：5xx 记 error、4xx 记 warn，其余（帧图片、动作等高频请求）记 debug；
// websocket 升级单独记 info，便于对照会话生命周期。
// 约束：不读取请求体；/metrics 抓取不记录。
func AccessMiddleware(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"ip", r.RemoteAddr,
			}
			if id := sessionID(r.URL.Path); id != "" {
				attrs = append(attrs, "session", id)
			}
			switch {
			case sw.status >= 500:
				l.Error("http_access", attrs...)
			case sw.status >= 400:
				l.Warn("http_access", attrs...)
			case sw.status == http.StatusSwitchingProtocols:
				l.Info("http_upgrade", attrs...)
			default:
				l.Debug("http_access", attrs...)
			}
		})
	}
}

// sessionID：从 .../sessions/{id}[/...] 中取会话 ID
func sessionID(p string) string {
	_, rest, ok := strings.Cut(p, "/sessions/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
