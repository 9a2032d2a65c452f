package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ADDR", "")
	t.Setenv("MAP_CATALOG", "")
	t.Setenv("MAP_URL_INDIA", "")
	t.Setenv("REDIS_ENABLE", "")
	t.Setenv("TLS_ENABLE", "")
	t.Setenv("RATE_LIMIT_QPS", "")
	t.Setenv("SESSION_IDLE_S", "")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "/api", c.APIBase)
	assert.True(t, c.Preload)
	assert.Equal(t, 10*time.Second, c.FetchTimeout)
	assert.False(t, c.Redis.Enabled)
	assert.Equal(t, "127.0.0.1:6379", c.Redis.Addr)
	assert.Empty(t, c.Sources)
	assert.False(t, c.TLS.Enabled)
	assert.Equal(t, filepath.Join("data", "certs", "server.crt"), c.TLS.CertPath)
	assert.Equal(t, 0, c.RateLimitQPS)
	assert.Equal(t, 30*time.Minute, c.SessionIdle)
}

func TestFromEnvCatalogAndOverrides(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "catalog.yaml")
	body := `
sources:
  world: file:///data/world.geojson
  india: https://example.test/india.geojson
asia_roster: [Japan, Nepal]
palette: ["#111111", "#222222"]
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	t.Setenv("MAP_CATALOG", p)
	t.Setenv("MAP_URL_INDIA", "/srv/india.geojson")
	t.Setenv("VIEW_OVERSCROLL", "0.25")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "file:///data/world.geojson", c.Sources["WORLD"])
	assert.Equal(t, "/srv/india.geojson", c.Sources["INDIA"], "env wins over catalog")
	assert.Equal(t, []string{"Japan", "Nepal"}, c.Catalog.AsiaRoster)
	assert.Len(t, c.Catalog.Palette, 2)
	assert.InDelta(t, 0.25, c.Overscroll, 1e-9)
}

func TestFromEnvBadCatalog(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("sources: [unclosed"), 0o644))
	t.Setenv("MAP_CATALOG", p)

	_, err := FromEnv()
	assert.Error(t, err)
}
