package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	pointDb "github.com/go-sod/weld/internal/point/database"
	"github.com/go-sod/weld/internal/point/model"
	"github.com/go-sod/weld/pkg/geom"
)

func agedPoints(entityID string, ages ...time.Duration) []model.Point {
	now := time.Now()
	points := make([]model.Point, len(ages))
	for i, age := range ages {
		points[i] = model.NewPoint(entityID, geom.Vec3{X: float64(i)}, now.Add(-age))
		points[i].Status = model.StatusProcessed
	}
	return points
}

func TestProcessOverSizePoints(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name            string
		maxPointsStored int
		batch           []model.Point
		deleteErr       error
		expectedDeleted []float64
	}{
		{
			name:            "positive_process_over_size_points",
			maxPointsStored: 3,
			batch:           agedPoints("e", 3*time.Hour, time.Hour, 5*time.Hour, 2*time.Hour, 4*time.Hour),
			expectedDeleted: []float64{2, 4},
		},
		{
			name:            "within_limit",
			maxPointsStored: 5,
			batch:           agedPoints("e", time.Hour, 2*time.Hour),
		},
		{
			name:            "negative_process_over_size_points",
			maxPointsStored: 1,
			batch:           agedPoints("e", time.Hour, 2*time.Hour),
			deleteErr:       errors.New("test error"),
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var deleted, evicted []model.Point
			scheduler := newDBScheduler(dbSchedulerConfig{
				maxPointsStored: test.maxPointsStored,
				deps: pullDependencies{
					fetchPointsByEntity: func(string, pointDb.FilterFn) ([]model.Point, error) {
						return test.batch, nil
					},
					deletePoints: func(_ context.Context, points []model.Point) error {
						deleted = points
						return test.deleteErr
					},
				},
				onEvict: func(_ context.Context, _ string, points []model.Point) {
					evicted = points
				},
			})

			err := scheduler.processOverSizePoints(context.Background(), "e")
			if test.deleteErr != nil {
				if !errors.Is(err, test.deleteErr) {
					t.Errorf("calling the processOverSizePoints method, error got: %v, expected: %v", err, test.deleteErr)
				}
				if evicted != nil {
					t.Errorf("points must not be evicted from the index when the delete failed")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(deleted) != len(test.expectedDeleted) {
				t.Fatalf("deleted points got: %v, expected: %v", len(deleted), len(test.expectedDeleted))
			}
			for i := range deleted {
				if deleted[i].Vec.X != test.expectedDeleted[i] {
					t.Errorf("deleted point %d got: %v, expected: %v", i, deleted[i].Vec.X, test.expectedDeleted[i])
				}
			}
			if len(evicted) != len(deleted) {
				t.Errorf("evicted points got: %v, expected: %v", len(evicted), len(deleted))
			}
		})
	}
}

func TestProcessOutdatedPoints(t *testing.T) {
	t.Parallel()
	batch := agedPoints("e", time.Minute, 2*time.Hour, 3*time.Hour)
	batch = append(batch, model.NewPoint("e", geom.Vec3{}, time.Now().Add(-5*time.Hour)))

	var deleted []model.Point
	scheduler := newDBScheduler(dbSchedulerConfig{
		maxStorageTime: time.Hour,
		deps: pullDependencies{
			fetchPointsByEntity: func(_ string, filter pointDb.FilterFn) ([]model.Point, error) {
				var out []model.Point
				for _, p := range batch {
					if filter(p) {
						out = append(out, p)
					}
				}
				return out, nil
			},
			deletePoints: func(_ context.Context, points []model.Point) error {
				deleted = points
				return nil
			},
		},
	})

	if err := scheduler.processOutdatedPoints(context.Background(), "e"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the new point is older but was never indexed
	if len(deleted) != 2 {
		t.Errorf("deleted points got: %v, expected: %v", len(deleted), 2)
	}
}

func TestRebuildSize(t *testing.T) {
	t.Parallel()
	counts := map[string]int{"small": 2, "large": 10}
	var processed []string
	scheduler := newDBScheduler(dbSchedulerConfig{
		maxPointsStored: 5,
		deps: pullDependencies{
			fetchKeys: func() ([]string, error) { return []string{"small", "large"}, nil },
			countByEntity: func(entityID string) (int, error) {
				return counts[entityID], nil
			},
			fetchPointsByEntity: func(entityID string, _ pointDb.FilterFn) ([]model.Point, error) {
				processed = append(processed, entityID)
				return nil, nil
			},
		},
	})
	if err := scheduler.rebuildSize(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(processed) != 1 || processed[0] != "large" {
		t.Errorf("processed entities got: %v, expected: %v", processed, []string{"large"})
	}
}
