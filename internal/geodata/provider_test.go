package geodata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const worldJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Germany","iso":"DE"},"geometry":{"type":"Polygon","coordinates":[[[6,47],[15,47],[15,55],[6,55],[6,47]]]}},
 {"type":"Feature","properties":{"name":"Japan"},"geometry":{"type":"MultiPolygon","coordinates":[[[[130,31],[141,31],[141,41],[130,41],[130,31]]]]}}
]}`

const indiaJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"st_nm":"Kerala"},"geometry":{"type":"Polygon","coordinates":[[[75,8],[77,8],[77,12],[75,12],[75,8]]]}},
 {"type":"Feature","properties":{"NAME_1":"Goa","name":"ignored","st_nm":"also ignored"},"geometry":{"type":"Polygon","coordinates":[[[73,15],[74,15],[74,16],[73,16],[73,15]]]}},
 {"type":"Feature","properties":{"name":"","st_nm":"Punjab"},"geometry":{"type":"Polygon","coordinates":[[[74,30],[76,30],[76,32],[74,32],[74,30]]]}}
]}`

type testServer struct {
	*httptest.Server
	hits sync.Map
}

func newTestServer(t *testing.T, routes map[string]string) *testServer {
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := ts.hits.LoadOrStore(r.URL.Path, new(atomic.Int32))
		v.(*atomic.Int32).Add(1)
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) count(path string) int32 {
	v, ok := ts.hits.Load(path)
	if !ok {
		return 0
	}
	return v.(*atomic.Int32).Load()
}

func newProvider(ts *testServer) *Provider {
	return NewProvider(Options{Sources: map[Region]string{
		World: ts.URL + "/world.geojson",
		Asia:  ts.URL + "/world.geojson",
		India: ts.URL + "/india.geojson",
	}})
}

func TestIndiaNamesNormalized(t *testing.T) {
	ts := newTestServer(t, map[string]string{"/india.geojson": indiaJSON})
	p := newProvider(ts)

	c, err := p.Collection(context.Background(), India)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kerala", "Goa", "Punjab"}, c.Names())
	assert.Equal(t, "Kerala", c.Features[0].Properties["name"])
	assert.Equal(t, India, c.Region)
}

func TestAsiaFilteredToRoster(t *testing.T) {
	ts := newTestServer(t, map[string]string{"/world.geojson": worldJSON})
	p := newProvider(ts)

	c, err := p.Collection(context.Background(), Asia)
	require.NoError(t, err)
	assert.Equal(t, []string{"Japan"}, c.Names())

	w, err := p.Collection(context.Background(), World)
	require.NoError(t, err)
	assert.Equal(t, []string{"Germany", "Japan"}, w.Names())
	assert.Equal(t, int32(1), ts.count("/world.geojson"), "world and asia share one fetch")
}

func TestCollectionReturnsIndependentCopies(t *testing.T) {
	ts := newTestServer(t, map[string]string{"/world.geojson": worldJSON})
	p := newProvider(ts)
	ctx := context.Background()

	a, err := p.Collection(ctx, World)
	require.NoError(t, err)
	b, err := p.Collection(ctx, World)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotSame(t, a, b)
	assert.NotSame(t, a.Features[0], b.Features[0])

	a.Features[0].Name = "Mutated"
	a.Features[0].Properties["iso"] = "XX"
	a.Features[0].Geometry.(orb.Polygon)[0][0] = orb.Point{0, 0}
	a.Features = a.Features[:1]

	c, err := p.Collection(ctx, World)
	require.NoError(t, err)
	assert.Equal(t, b, c)
	assert.Equal(t, "Germany", c.Features[0].Name)
	assert.Equal(t, "DE", c.Features[0].Properties["iso"])
	assert.Equal(t, orb.Point{6, 47}, c.Features[0].Geometry.(orb.Polygon)[0][0])
	assert.Equal(t, int32(1), ts.count("/world.geojson"))
}

func TestLoadErrors(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"/bad.json":   `{"type":"FeatureCollection","features":[`,
		"/wrong.json": `{"type":"Topology","objects":{}}`,
	})
	cases := map[string]string{
		"status":  ts.URL + "/missing.geojson",
		"syntax":  ts.URL + "/bad.json",
		"shape":   ts.URL + "/wrong.json",
		"network": "http://127.0.0.1:1/unreachable.geojson",
	}
	for name, u := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewProvider(Options{Sources: map[Region]string{World: u}})
			_, err := p.Collection(context.Background(), World)
			require.Error(t, err)
			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, World, le.Region)
			assert.Equal(t, u, le.URL)
		})
	}

	p := NewProvider(Options{Sources: map[Region]string{World: ts.URL + "/missing.geojson"}})
	_, err := p.Collection(context.Background(), World)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestFailedLoadIsNotCached(t *testing.T) {
	routes := map[string]string{}
	ts := newTestServer(t, routes)
	p := newProvider(ts)

	_, err := p.Collection(context.Background(), World)
	require.Error(t, err)
	_, err = p.Collection(context.Background(), World)
	require.Error(t, err)
	assert.Equal(t, int32(2), ts.count("/world.geojson"), "each call retries the fetch")
}

func TestPreloadSwallowsFailures(t *testing.T) {
	ts := newTestServer(t, map[string]string{"/world.geojson": worldJSON})
	p := newProvider(ts)

	p.Preload(context.Background())
	assert.Equal(t, int32(1), ts.count("/world.geojson"))
	assert.Equal(t, int32(1), ts.count("/india.geojson"))

	c, err := p.Collection(context.Background(), Asia)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int32(1), ts.count("/world.geojson"))
}

type memShared struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memShared) Get(_ context.Context, k string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[k]
	return b, ok
}

func (m *memShared) Set(_ context.Context, k string, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = b
}

func TestSharedCacheServesSecondProcess(t *testing.T) {
	ts := newTestServer(t, map[string]string{"/world.geojson": worldJSON})
	shared := &memShared{data: map[string][]byte{}}
	opts := Options{Sources: map[Region]string{World: ts.URL + "/world.geojson"}, Shared: shared}

	_, err := NewProvider(opts).Collection(context.Background(), World)
	require.NoError(t, err)
	c, err := NewProvider(opts).Collection(context.Background(), World)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int32(1), ts.count("/world.geojson"))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "india.geojson")
	require.NoError(t, os.WriteFile(path, []byte(indiaJSON), 0o644))

	p := NewProvider(Options{Sources: map[Region]string{India: "file://" + path}})
	c, err := p.Collection(context.Background(), India)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion(" india ")
	require.NoError(t, err)
	assert.Equal(t, India, r)
	_, err = ParseRegion("europe")
	assert.Error(t, err)
}

func TestInvalidateRefetches(t *testing.T) {
	ts := newTestServer(t, map[string]string{"/world.geojson": worldJSON})
	p := newProvider(ts)
	ctx := context.Background()

	_, err := p.Collection(ctx, World)
	require.NoError(t, err)
	_, err = p.Collection(ctx, Asia)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ts.count("/world.geojson"))

	p.Invalidate()
	c, err := p.Collection(ctx, World)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.EqualValues(t, 2, ts.count("/world.geojson"))
}
