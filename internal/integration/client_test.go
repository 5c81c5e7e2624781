package integration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-sod/weld/internal/collect"
	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/notify"
	"github.com/go-sod/weld/internal/query"
	"github.com/go-sod/weld/internal/server"
	"github.com/go-sod/weld/pkg/geom"
)

func newService(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	shutdownCh := make(chan error, 2)

	db := database.NewTestDatabase(t)
	notifier, err := notify.New(nil, shutdownCh)
	require.NoError(t, err)
	d, err := dispatcher.New(db, notifier, shutdownCh,
		dispatcher.WithTolerance(1e-9, 1e-2),
		dispatcher.WithDBFlushTime(time.Second),
	)
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx))

	collectHandler, err := collect.NewHandler(&collect.Config{RequestTimeout: time.Second, MaxPoints: 100}, d)
	require.NoError(t, err)
	queryHandler, err := query.NewHandler(&query.Config{RequestTimeout: time.Second, MaxBoxes: 4}, d)
	require.NoError(t, err)
	clustersHandler, err := query.NewClustersHandler(&query.Config{RequestTimeout: time.Second}, d)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/collect", collectHandler)
	mux.Handle("/query", queryHandler)
	mux.Handle("/clusters", clustersHandler)
	mux.Handle("/health", server.HandleHealth(ctx))
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		select {
		case err := <-shutdownCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("dispatcher did not shut down")
		}
	})

	client, err := NewClient(&Config{URL: srv.URL, RequestTimeout: 5 * time.Second})
	require.NoError(t, err)
	return client
}

func TestClient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newService(t)

	require.NoError(t, client.Health(ctx))

	collected, err := client.Collect(ctx, CollectRequest{
		EntityID: "e",
		Points:   []geom.Vec3{{X: 1}, {X: 1.01}, {X: 1.015}, {X: 1.005}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, collected.Accepted)

	var clusters *ClustersResponse
	require.Eventually(t, func() bool {
		clusters, err = client.Clusters(ctx, "e")
		return err == nil && len(clusters.Clusters) == 1 && clusters.Clusters[0].Count == 4
	}, 5*time.Second, 10*time.Millisecond)
	assert.InDelta(t, 1.00875, clusters.Clusters[0].Center.X, 1e-12)
	assert.Equal(t, geom.NewBox(geom.Vec3{X: 1}, geom.Vec3{X: 1.015}), clusters.BBox)

	resp, err := client.Query(ctx, QueryRequest{
		EntityID: "e",
		Boxes:    []geom.Box{geom.NewBox(geom.Vec3{X: 1.004}, geom.Vec3{X: 1.011})},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.ElementsMatch(t, []geom.Vec3{{X: 1.005}, {X: 1.01}}, resp.Results[0].Points)

	_, err = client.Clusters(ctx, "unknown")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}
