package geodata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"tiny-explorers/internal/config"
)

func TestSourcesFromConfig(t *testing.T) {
	cfg := &config.Config{
		WebDist: "web",
		Sources: map[string]string{"INDIA": "s3://maps/india.geojson", "MOON": "x", "ASIA": ""},
	}
	got := SourcesFromConfig(cfg)
	assert.Equal(t, filepath.Join("web", "assets", "maps", "world.geojson"), got[World])
	assert.Equal(t, got[World], got[Asia], "asia shares the world dataset")
	assert.Equal(t, "s3://maps/india.geojson", got[India])
	assert.Len(t, got, 3)

	p := NewProviderFromConfig(cfg, nil)
	assert.Equal(t, "s3://maps/india.geojson", p.URL(India))
}
