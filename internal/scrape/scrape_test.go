package scrape

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/point/model"
	"github.com/go-sod/weld/pkg/geom"
)

type fakeDispatcher struct {
	mtx     sync.Mutex
	points  []model.Point
	running bool
}

func (f *fakeDispatcher) Collect(in ...model.Point) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.points = append(f.points, in...)
	return nil
}

func (f *fakeDispatcher) Collected() []model.Point {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]model.Point(nil), f.points...)
}

func (f *fakeDispatcher) Query(context.Context, string, geom.Box, float64) ([]geom.Vec3, error) {
	return nil, nil
}

func (f *fakeDispatcher) Clusters(context.Context, string) ([]dispatcher.Cluster, error) {
	return nil, nil
}

func (f *fakeDispatcher) BBox(string) (geom.Box, error) {
	return geom.EmptyBox(), nil
}

func (f *fakeDispatcher) Run(context.Context) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.running = true
	return nil
}

func (f *fakeDispatcher) Stop() {}

const body = `{"entity": "remote", "data": [
	{"vec": [2, 0, 0], "createdAt": "2020-01-02T00:00:00Z"},
	{"vec": [1, 0, 0], "createdAt": "2020-01-01T00:00:00Z"}
]}`

func newTarget(t *testing.T, compress bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !compress {
			_, _ = fmt.Fprint(w, body)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = fmt.Fprint(gz, body)
		_ = gz.Close()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_Scrapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		compress bool
		entityID string
		expected string
	}{
		{name: "plain", expected: "remote"},
		{name: "gzip", compress: true, expected: "remote"},
		{name: "entity_override", entityID: "local", expected: "local"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			srv := newTarget(t, test.compress)
			d := &fakeDispatcher{}
			m, err := New(d, make(chan error, 1), WithTargetUrls(Targets{{URL: srv.URL, EntityID: test.entityID}}))
			require.NoError(t, err)

			m.scrapping(context.Background())

			points := d.Collected()
			require.Len(t, points, 2)
			assert.Equal(t, geom.Vec3{X: 1}, points[0].Vec, "points must be collected in creation order")
			assert.Equal(t, geom.Vec3{X: 2}, points[1].Vec)
			for _, p := range points {
				assert.Equal(t, test.expected, p.EntityID)
			}
		})
	}
}

func TestManager_RunStop(t *testing.T) {
	t.Parallel()
	srv := newTarget(t, false)
	d := &fakeDispatcher{}
	shutdownCh := make(chan error, 1)
	m, err := New(d, shutdownCh, WithInterval(10*time.Millisecond), WithTargetUrls(Targets{{URL: srv.URL}}))
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background()))

	require.Eventually(t, func() bool {
		return len(d.Collected()) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	m.Stop()
	select {
	case err := <-shutdownCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scrape manager did not stop")
	}
}

func TestTargets_Decode(t *testing.T) {
	t.Parallel()
	var ts Targets
	require.NoError(t, ts.Decode(`[{"url": "http://a/points", "entityId": "a"}]`))
	assert.Equal(t, Targets{{URL: "http://a/points", EntityID: "a"}}, ts)
	assert.Error(t, ts.Decode(`{`))
}
