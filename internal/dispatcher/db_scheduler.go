package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/logging"
	"github.com/go-sod/weld/internal/point/model"
	"github.com/go-sod/weld/pkg/container/avltree"
)

// Scheduler options
type dbSchedulerConfig struct {
	maxPointsStored int
	maxStorageTime  time.Duration
	rebuildDBTime   time.Duration
	deps            pullDependencies
	// called with the points removed from an entity
	onEvict evictFn
}

type evictFn func(ctx context.Context, entityID string, points []model.Point)

func newDBScheduler(config dbSchedulerConfig) *dbScheduler {
	return &dbScheduler{opts: config}
}

// The scheduler is responsible for deleting old data from the DB.
// It can maintain the required amount of data in the DB or delete old data
// depending on the configuration. Evicted points leave the entity index too.
type dbScheduler struct {
	opts dbSchedulerConfig
}

func byCreatedAt(a, b model.Point) int {
	return a.CreatedAt.Compare(b.CreatedAt)
}

func (s *dbScheduler) evict(ctx context.Context, entityID string, points []model.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := s.opts.deps.deletePoints(ctx, points); err != nil {
		return fmt.Errorf("unable delete points of entity %s: %w", entityID, err)
	}
	if s.opts.onEvict != nil {
		s.opts.onEvict(ctx, entityID, points)
	}
	return nil
}

// processOutdatedPoints deletes the processed points of an entity that are
// older than the retention period.
func (s *dbScheduler) processOutdatedPoints(ctx context.Context, entityID string) error {
	points, err := s.opts.deps.fetchPointsByEntity(entityID, func(point model.Point) bool {
		return point.IsProcessed() && time.Since(point.CreatedAt) > s.opts.maxStorageTime
	})
	if err != nil {
		return fmt.Errorf("unable find points by entity %s: %w", entityID, err)
	}
	return s.evict(ctx, entityID, points)
}

// processOverSizePoints deletes the oldest processed points of an entity
// until at most maxPointsStored of them remain.
func (s *dbScheduler) processOverSizePoints(ctx context.Context, entityID string) error {
	points, err := s.opts.deps.fetchPointsByEntity(entityID, model.Point.IsProcessed)
	if err != nil {
		return fmt.Errorf("unable find points by entity %s: %w", entityID, err)
	}
	excess := len(points) - s.opts.maxPointsStored
	if excess <= 0 {
		return nil
	}

	byAge := avltree.New(byCreatedAt)
	byAge.Build(points...)
	oldest := make([]model.Point, 0, excess)
	for p := range byAge.All() {
		if len(oldest) == excess {
			break
		}
		oldest = append(oldest, p)
	}
	return s.evict(ctx, entityID, oldest)
}

// rebuildOutdated checks every entity for outdated points
func (s *dbScheduler) rebuildOutdated(ctx context.Context) error {
	keys, err := s.opts.deps.fetchKeys()
	if err != nil {
		return fmt.Errorf("unable to fetch point keys: %w", err)
	}
	for i := range keys {
		if err := s.processOutdatedPoints(ctx, keys[i]); err != nil && !errors.Is(err, database.ErrBucketNotFound) {
			return fmt.Errorf("unable process points: %w", err)
		}
	}
	return nil
}

// rebuildSize checks the number of points stored for every entity
func (s *dbScheduler) rebuildSize(ctx context.Context) error {
	keys, err := s.opts.deps.fetchKeys()
	if err != nil {
		return fmt.Errorf("unable fetch keys: %w", err)
	}
	for i := range keys {
		length, err := s.opts.deps.countByEntity(keys[i])
		if err != nil {
			return fmt.Errorf("unable count by entity %s: %w", keys[i], err)
		}
		if length > s.opts.maxPointsStored {
			if err := s.processOverSizePoints(ctx, keys[i]); err != nil {
				return fmt.Errorf("unable process points: %w", err)
			}
		}
	}

	return nil
}

func (s *dbScheduler) run(ctx context.Context) {
	logger := logging.FromContext(ctx)
	if s.opts.maxPointsStored > 0 {
		if err := s.rebuildSize(ctx); err != nil {
			logger.Errorf("unable db rebuild size: %v", err)
		}
	}
	if s.opts.maxStorageTime > 0 {
		if err := s.rebuildOutdated(ctx); err != nil {
			logger.Errorf("unable db rebuild outdated: %v", err)
		}
	}
}

// Scheduler for running data cleanup functions in the DB
func (s *dbScheduler) schedule(ctx context.Context) {
	if s.opts.rebuildDBTime <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.rebuildDBTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.run(ctx)
		case <-ctx.Done():
			return
		}
	}
}
