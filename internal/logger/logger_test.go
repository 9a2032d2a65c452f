package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestSetupWriterReplacesDefault(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWriter(&buf, "info", "json")
	assert.Same(t, l, L())
	Component("engine").Info("map_load_ok", "region", "WORLD")
	L().Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "map_load_ok", rec["msg"])
	assert.Equal(t, "engine", rec["component"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "abc", sessionID("/api/sessions/abc/map.svg"))
	assert.Equal(t, "abc", sessionID("/api/sessions/abc"))
	assert.Equal(t, "", sessionID("/api/sessions"))
	assert.Equal(t, "", sessionID("/api/regions"))
}

func TestAccessMiddlewareLevels(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	h := AccessMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/missing"):
			http.NotFound(w, r)
		case strings.HasSuffix(r.URL.Path, "/boom"):
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))

	for _, p := range []string{"/api/sessions/s1/map.svg", "/api/sessions/s1/missing", "/api/boom", "/api/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	out := buf.String()
	assert.NotContains(t, out, "map.svg", "2xx is debug")
	assert.NotContains(t, out, "/api/metrics")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "session=s1")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "status=503")
}
