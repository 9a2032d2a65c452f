package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const worldJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Kenya"},"geometry":{"type":"Polygon","coordinates":[[[0.12345,0.12345],[10.98765,0.12345],[10.98765,10.5],[0.12345,0.12345]]]}},
 {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[20,0],[30,0],[30,10],[20,0]]]}}
]}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseSize(t *testing.T) {
	w, h, err := parseSize("640X480")
	require.NoError(t, err)
	assert.Equal(t, 640.0, w)
	assert.Equal(t, 480.0, h)
	_, _, err = parseSize("wide")
	assert.Error(t, err)
	_, _, err = parseSize("0x10")
	assert.Error(t, err)
}

func TestOptimizeAndValidate(t *testing.T) {
	p := filepath.Join(t.TempDir(), "world.geojson")
	require.NoError(t, os.WriteFile(p, []byte(worldJSON), 0o644))

	out, err := run(t, "optimize", p)
	require.NoError(t, err)
	assert.Contains(t, out, "MB")
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), "0.123")
	assert.NotContains(t, string(b), "0.12345")

	out, err = run(t, "validate", p)
	require.NoError(t, err)
	assert.Contains(t, out, "2 features, 1 without properties.name")

	bad := filepath.Join(t.TempDir(), "bad.geojson")
	require.NoError(t, os.WriteFile(bad, []byte(`{"type":"Feature"}`), 0o644))
	_, err = run(t, "validate", bad)
	assert.Error(t, err)
}

func TestRenderFromFileSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "world.geojson")
	require.NoError(t, os.WriteFile(src, []byte(worldJSON), 0o644))
	t.Setenv("MAP_CATALOG", "")
	t.Setenv("MAP_URL_WORLD", src)

	svg := filepath.Join(dir, "out.svg")
	out, err := run(t, "render", "--region", "world", "--size", "300x200", "--correct", "Kenya", "--out", svg)
	require.NoError(t, err)
	assert.Contains(t, out, "WORLD: 2 features")
	b, err := os.ReadFile(svg)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "<svg"))
	assert.Contains(t, string(b), "#4ade80")

	png := filepath.Join(dir, "out.png")
	out, err = run(t, "render", "--region", "world", "--size", "300x200", "--correct", "Atlantis", "--out", png)
	require.NoError(t, err)
	assert.Contains(t, out, `warning: --correct "Atlantis" matches no feature in WORLD`)
	_, err = run(t, "render", "--region", "world", "--size", "300x200", "--correct", "", "--out", png)
	require.NoError(t, err)
	b, err = os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG")))
}
