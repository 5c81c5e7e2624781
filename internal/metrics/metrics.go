// Package metrics defines the OpenCensus measures recorded by the service
// and exposes them in the Prometheus format.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const namespace = "weld"

var (
	PointsCollected = stats.Int64("points_collected", "points accepted for indexing", stats.UnitDimensionless)
	PointsIndexed   = stats.Int64("points_indexed", "points appended to an entity index", stats.UnitDimensionless)
	PointsMerged    = stats.Int64("points_merged", "points welded into an existing cluster", stats.UnitDimensionless)
	ClustersBridged = stats.Int64("clusters_bridged", "clusters absorbed into another cluster", stats.UnitDimensionless)
	QueryLatency    = stats.Float64("query_latency", "range query latency", stats.UnitMilliseconds)
	QueryPoints     = stats.Int64("query_points", "points returned by a range query", stats.UnitDimensionless)
	PointsEvicted   = stats.Int64("points_evicted", "points dropped by retention", stats.UnitDimensionless)
)

var (
	KeyEntity tag.Key

	registerOnce sync.Once
	registerErr  error
)

func init() {
	k, err := tag.NewKey("entity")
	if err != nil {
		panic(fmt.Sprintf("metrics: entity tag key: %v", err))
	}
	KeyEntity = k
}

// Views returns every view the service registers.
func Views() []*view.View {
	byEntity := []tag.Key{KeyEntity}
	return []*view.View{
		{Name: PointsCollected.Name(), Measure: PointsCollected, Aggregation: view.Sum(), TagKeys: byEntity},
		{Name: PointsIndexed.Name(), Measure: PointsIndexed, Aggregation: view.Sum(), TagKeys: byEntity},
		{Name: PointsMerged.Name(), Measure: PointsMerged, Aggregation: view.Sum(), TagKeys: byEntity},
		{Name: ClustersBridged.Name(), Measure: ClustersBridged, Aggregation: view.Sum(), TagKeys: byEntity},
		{Name: PointsEvicted.Name(), Measure: PointsEvicted, Aggregation: view.Sum(), TagKeys: byEntity},
		{
			Name:        QueryLatency.Name(),
			Measure:     QueryLatency,
			Aggregation: view.Distribution(0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000),
		},
		{
			Name:        QueryPoints.Name(),
			Measure:     QueryPoints,
			Aggregation: view.Distribution(0, 1, 10, 100, 1000, 10000, 100000),
		},
	}
}

// Register registers the views once per process.
func Register() error {
	registerOnce.Do(func() {
		registerErr = view.Register(Views()...)
	})
	return registerErr
}

// NewHandler registers the views and returns the Prometheus scrape handler.
func NewHandler() (http.Handler, error) {
	if err := Register(); err != nil {
		return nil, fmt.Errorf("register views: %w", err)
	}
	exporter, err := prometheus.NewExporter(prometheus.Options{Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	return exporter, nil
}

// Record records measurements tagged with the entity id.
func Record(ctx context.Context, entityID string, ms ...stats.Measurement) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyEntity, entityID)}, ms...)
}
