// Package dispatcher owns one spatial index per entity. It feeds collected
// points to the indexes, persists them and answers range queries.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/logging"
	"github.com/go-sod/weld/internal/metrics"
	"github.com/go-sod/weld/internal/notify"
	notifyModel "github.com/go-sod/weld/internal/notify/model"
	pointDb "github.com/go-sod/weld/internal/point/database"
	"github.com/go-sod/weld/internal/point/model"
	"github.com/go-sod/weld/internal/util"
	"github.com/go-sod/weld/pkg/container/kdrange"
	"github.com/go-sod/weld/pkg/geom"
	"github.com/go-sod/weld/pkg/iqueue"
	"github.com/go-sod/weld/pkg/rworker"
)

var (
	ErrShuttingDown   = errors.New("dispatcher is shutting down")
	ErrEntityNotFound = errors.New("entity not found")
)

// Contract for returning the Manager instance
type ProvideFn func(notify.Manager, chan<- error) (Manager, error)

// Manager is the background service: it collects points and answers queries.
type Manager interface {
	Collector
	Querier
	// Start method of the service
	Run(context.Context) error
	// Method for stopping the service
	Stop()
}

// Collector accepts points from outside and queues them for indexing
type Collector interface {
	Collect(in ...model.Point) error
}

// Querier reads the entity indexes
type Querier interface {
	// Query returns the points of an entity inside box. A positive scale
	// other than 1 first scales box about its center.
	Query(ctx context.Context, entityID string, box geom.Box, scale float64) ([]geom.Vec3, error)
	// Clusters returns a snapshot of the live clusters of an entity
	Clusters(ctx context.Context, entityID string) ([]Cluster, error)
	// BBox is the bounding box of every point indexed for an entity
	BBox(entityID string) (geom.Box, error)
}

// Cluster is a snapshot of a node holding more than one point.
type Cluster struct {
	ID         string      `json:"id"`
	Center     geom.Vec3   `json:"center"`
	Count      int         `json:"count"`
	CoreWeight int         `json:"coreWeight"`
	Points     []geom.Vec3 `json:"points"`
}

// Abstractions for getting dependencies
type (
	// function for getting all points
	fetchPointsFn func(context.Context, pointDb.FilterFn) ([]model.Point, error)
	// function for getting the points of an entity
	fetchPointsByEntityFn func(string, pointDb.FilterFn) ([]model.Point, error)
	// function for deleting multiple points
	deletePointsFn func(context.Context, []model.Point) error
	// function to add sets of points
	appendPointsFn func(context.Context, []model.Point) error
	// function for getting all entity IDs
	fetchKeysFn func() ([]string, error)
	// number of points by entity id
	countByEntityFn func(string) (int, error)
)

// General structure for aggregation of dependency pulling functions
type pullDependencies struct {
	fetchPoints         fetchPointsFn
	fetchPointsByEntity fetchPointsByEntityFn
	deletePoints        deletePointsFn
	appendPoints        appendPointsFn
	fetchKeys           fetchKeysFn
	countByEntity       countByEntityFn
}

type Options struct {
	eps             float64
	clusterEps      float64
	maxPointsStored int
	maxStorageTime  time.Duration
	dbFlushTime     time.Duration
	dbFlushSize     int
	rebuildDBTime   time.Duration
	loadConcurrency int
	deps            pullDependencies
}

type Option func(*manager)

func WithTolerance(eps, clusterEps float64) Option {
	return func(o *manager) {
		o.opts.eps = eps
		o.opts.clusterEps = clusterEps
	}
}

func WithDBFlushTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.dbFlushTime = t
	}
}

func WithDBFlushSize(n int) Option {
	return func(o *manager) {
		o.opts.dbFlushSize = n
	}
}

func WithRebuildDBTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.rebuildDBTime = t
	}
}

func WithMaxPointsStored(n int) Option {
	return func(o *manager) {
		o.opts.maxPointsStored = n
	}
}

func WithMaxStorageTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.maxStorageTime = t
	}
}

func WithLoadConcurrency(n int) Option {
	return func(o *manager) {
		o.opts.loadConcurrency = n
	}
}

// New return manager
func New(
	db *database.DB,
	notifier notify.Manager,
	shutdownCh chan<- error,
	opts ...Option,
) (*manager, error) {
	if db == nil {
		return nil, fmt.Errorf("database instance is not created")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier instance is not created")
	}

	d := &manager{
		pointDB:    pointDb.New(db),
		collectCh:  make(chan model.Point, 64),
		stopped:    make(chan struct{}),
		shutDownCh: shutdownCh,
		entities:   map[string]*entity{},
		queue:      map[string]*iqueue.Queue[model.Point]{},
		notifier:   notifier,
		opts: Options{
			eps:             1e-9,
			clusterEps:      0.01,
			dbFlushTime:     5 * time.Second,
			dbFlushSize:     100,
			loadConcurrency: 4,
		},
	}

	for _, f := range opts {
		f(d)
	}

	if _, err := kdrange.New(d.opts.eps, d.opts.clusterEps); err != nil {
		return nil, fmt.Errorf("invalid index options: %w", err)
	}
	if d.opts.dbFlushTime <= 0 {
		return nil, fmt.Errorf("db flush time must be positive, got %v", d.opts.dbFlushTime)
	}

	// structure containing functions for getting and adding points
	d.opts.deps = pullDependencies{
		fetchPoints:         d.pointDB.FindAll,
		fetchPointsByEntity: d.pointDB.FindByEntity,
		deletePoints:        d.pointDB.DeleteMany,
		appendPoints:        d.pointDB.AppendMany,
		fetchKeys:           d.pointDB.Keys,
		countByEntity:       d.pointDB.CountByEntity,
	}

	d.dbScheduler = newDBScheduler(dbSchedulerConfig{
		deps:            d.opts.deps,
		maxPointsStored: d.opts.maxPointsStored,
		maxStorageTime:  d.opts.maxStorageTime,
		rebuildDBTime:   d.opts.rebuildDBTime,
		onEvict:         d.evict,
	})

	d.dbTxExecutor = newDBTxExecutor(dbTxExecutorOptions{
		appendFn:  d.opts.deps.appendPoints,
		flushTime: d.opts.dbFlushTime,
		flushSize: d.opts.dbFlushSize,
	})

	return d, nil
}

// entity is the index of one entity. Writers hold mtx exclusively, so an
// index never sees two concurrent appends.
type entity struct {
	mtx   sync.RWMutex
	index *kdrange.Index
	// suppresses notifications while the index is rebuilt from known points
	quiet bool
}

type manager struct {
	mtx sync.RWMutex

	// Manager options
	opts Options
	// Main point storage
	pointDB *pointDb.DB
	// The notification manager
	notifier notify.Manager
	// The transaction manager in the store
	dbTxExecutor *dbTxExecutor
	// Managing data in storage
	dbScheduler *dbScheduler

	entities map[string]*entity
	// Per entity queues, owned by the collector goroutine
	queue     map[string]*iqueue.Queue[model.Point]
	receivers sync.WaitGroup
	// New data channel for processing
	collectCh chan model.Point
	// closed when the collector stops accepting points
	stopped chan struct{}
	// Channel to shutdown the application
	shutDownCh chan<- error

	closed bool

	// cancellation
	cancelNotifier func()
	cancel         func()
}

// The Run method loads stored points and starts the collection loop
func (d *manager) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	pending, err := d.bulkLoad(ctx)
	if err != nil {
		return fmt.Errorf("can not start dispatcher manager: %w", err)
	}

	// the notifier outlives ctx so the events of drained points still go out
	notifyCtx, cancelNotifier := context.WithCancel(logging.WithLogger(context.Background(), logger))
	d.cancelNotifier = cancelNotifier
	if err := d.notifier.Run(notifyCtx); err != nil {
		cancelNotifier()
		return fmt.Errorf("notify.Run: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.collector(ctx)
	go d.dbTxExecutor.flusher(ctx)
	go d.dbScheduler.schedule(ctx)

	if len(pending) > 0 {
		logger.Infof("requeue %d unprocessed points", len(pending))
		go func() {
			if err := d.Collect(pending...); err != nil {
				logger.Errorf("unable requeue points: %v", err)
			}
		}()
	}

	return nil
}

// Stop the manager
func (d *manager) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Collect adds data to the feed for saving to the queue
func (d *manager) Collect(data ...model.Point) error {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	if d.closed {
		return ErrShuttingDown
	}
	for i := range data {
		select {
		case d.collectCh <- data[i]:
			metrics.Record(context.Background(), data[i].EntityID, metrics.PointsCollected.M(1))
		case <-d.stopped:
			return ErrShuttingDown
		}
	}
	return nil
}

func (d *manager) Query(ctx context.Context, entityID string, box geom.Box, scale float64) ([]geom.Vec3, error) {
	start := time.Now()
	e, err := d.lookup(entityID)
	if err != nil {
		return nil, err
	}
	if scale > 0 && scale != 1 {
		box = box.Scale(scale)
	}

	e.mtx.RLock()
	points := e.index.RangeSearch(box)
	e.mtx.RUnlock()

	metrics.Record(ctx, entityID,
		metrics.QueryLatency.M(float64(time.Since(start))/float64(time.Millisecond)),
		metrics.QueryPoints.M(int64(len(points))),
	)
	return points, nil
}

func (d *manager) Clusters(_ context.Context, entityID string) ([]Cluster, error) {
	e, err := d.lookup(entityID)
	if err != nil {
		return nil, err
	}

	e.mtx.RLock()
	defer e.mtx.RUnlock()
	nodes := e.index.Clusters()
	clusters := make([]Cluster, 0, len(nodes))
	for _, n := range nodes {
		clusters = append(clusters, Cluster{
			ID:         clusterID(n),
			Center:     n.Center(),
			Count:      n.ClusterCount(),
			CoreWeight: n.CoreWeight(),
			Points:     n.ClusterPoints(),
		})
	}
	return clusters, nil
}

func (d *manager) BBox(entityID string) (geom.Box, error) {
	e, err := d.lookup(entityID)
	if err != nil {
		return geom.EmptyBox(), err
	}
	e.mtx.RLock()
	defer e.mtx.RUnlock()
	return e.index.ABox(), nil
}

// clusterID is derived from the seed point, which never changes.
func clusterID(n *kdrange.Node) string {
	return util.ShortHash(n.Seed().Points())
}

func (d *manager) lookup(entityID string) (*entity, error) {
	d.mtx.RLock()
	e, ok := d.entities[entityID]
	d.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	return e, nil
}

func (d *manager) newEntity(ctx context.Context, entityID string) (*entity, error) {
	e := &entity{}
	index, err := d.newIndex(ctx, entityID, e)
	if err != nil {
		return nil, err
	}
	e.index = index
	return e, nil
}

func (d *manager) newIndex(ctx context.Context, entityID string, e *entity) (*kdrange.Index, error) {
	index, err := kdrange.New(
		d.opts.eps,
		d.opts.clusterEps,
		kdrange.WithLogger(logging.FromContext(ctx).With("entity", entityID)),
		kdrange.WithMergeObserver(func(ev kdrange.MergeEvent) {
			d.observe(entityID, e, ev)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create index for entity %s: %w", entityID, err)
	}
	return index, nil
}

// observe runs under the entity write lock.
func (d *manager) observe(entityID string, e *entity, ev kdrange.MergeEvent) {
	if e.quiet {
		return
	}
	ctx := context.Background()
	metrics.Record(ctx, entityID, metrics.PointsMerged.M(1))
	if len(ev.Bridged) == 0 {
		return
	}
	metrics.Record(ctx, entityID, metrics.ClustersBridged.M(int64(len(ev.Bridged))))

	bridged := make([]string, len(ev.Bridged))
	for i, n := range ev.Bridged {
		bridged[i] = clusterID(n)
	}
	d.notifier.Notify(notifyModel.Event{
		EntityID:  entityID,
		ClusterID: clusterID(ev.Target),
		Center:    ev.Target.Center(),
		Count:     ev.Target.ClusterCount(),
		Bridged:   bridged,
		Point:     ev.Point,
		CreatedAt: time.Now(),
	})
}

// entityFor returns the entity, creating it on first use.
func (d *manager) entityFor(ctx context.Context, entityID string) (*entity, error) {
	d.mtx.RLock()
	e, ok := d.entities[entityID]
	d.mtx.RUnlock()
	if ok {
		return e, nil
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()
	if e, ok := d.entities[entityID]; ok {
		return e, nil
	}
	e, err := d.newEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	d.entities[entityID] = e
	return e, nil
}

// bulkLoad rebuilds the indexes from storage and returns the points that
// were stored but never indexed.
func (d *manager) bulkLoad(ctx context.Context) ([]model.Point, error) {
	logger := logging.FromContext(ctx)

	data, err := d.opts.deps.fetchPoints(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching all points: %w", err)
	}

	var pending []model.Point
	processed := map[string][]model.Point{}
	for _, dat := range data {
		switch {
		case dat.IsProcessed():
			processed[dat.EntityID] = append(processed[dat.EntityID], dat)
		case dat.IsNew():
			pending = append(pending, dat)
		}
	}
	slices.SortStableFunc(pending, byCreatedAt)

	pool := rworker.New(d.opts.loadConcurrency)
	d.mtx.Lock()
	for entityID, points := range processed {
		e, err := d.newEntity(ctx, entityID)
		if err != nil {
			d.mtx.Unlock()
			return nil, err
		}
		d.entities[entityID] = e
		pool.Go(func() error {
			slices.SortStableFunc(points, byCreatedAt)
			e.mtx.Lock()
			defer e.mtx.Unlock()
			e.quiet = true
			for _, p := range points {
				e.index.Append(p.Vec)
			}
			e.quiet = false
			return nil
		})
	}
	d.mtx.Unlock()
	if err := pool.Wait(); err != nil {
		return nil, fmt.Errorf("bulk load: %w", err)
	}

	logger.Infof("loaded %d points of %d entities", len(data)-len(pending), len(processed))
	return pending, nil
}

// evict rebuilds the index of an entity without the given points.
func (d *manager) evict(ctx context.Context, entityID string, points []model.Point) {
	logger := logging.FromContext(ctx)
	e, err := d.lookup(entityID)
	if err != nil {
		return
	}

	drop := make(map[geom.Vec3]int, len(points))
	for _, p := range points {
		drop[p.Vec]++
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()
	fresh, err := d.newIndex(ctx, entityID, e)
	if err != nil {
		logger.Errorf("unable rebuild index: %v", err)
		return
	}
	e.quiet = true
	for v := range e.index.PointsWithin(geom.OpenBox()) {
		if drop[v] > 0 {
			drop[v]--
			continue
		}
		fresh.Append(v)
	}
	e.quiet = false
	e.index = fresh

	metrics.Record(ctx, entityID, metrics.PointsEvicted.M(int64(len(points))))
	logger.Debugf("evicted %d points of entity %s", len(points), entityID)
}

func (d *manager) process(ctx context.Context, point model.Point) error {
	e, err := d.entityFor(ctx, point.EntityID)
	if err != nil {
		return fmt.Errorf("unable processed point %s: %w", point.ID, err)
	}

	e.mtx.Lock()
	e.index.Append(point.Vec)
	e.mtx.Unlock()

	point.Status = model.StatusProcessed
	d.dbTxExecutor.append(ctx, point)
	metrics.Record(ctx, point.EntityID, metrics.PointsIndexed.M(1))
	return nil
}

// receive is the only writer of an entity besides eviction. It returns once
// the queue is closed and drained.
func (d *manager) receive(ctx context.Context, q *iqueue.Queue[model.Point]) {
	logger := logging.FromContext(ctx)
	defer d.receivers.Done()

	for recv := range q.Receive() {
		if err := d.process(ctx, recv); err != nil {
			logger.Errorf("unable processed data: %v", err)
		}
	}
}

// route stores the point as new and hands it to its entity queue.
func (d *manager) route(ctx context.Context, in model.Point) {
	in.Status = model.StatusNew
	d.dbTxExecutor.append(ctx, in)
	q, ok := d.queue[in.EntityID]
	if !ok {
		q = iqueue.New[model.Point]()
		go q.Loop()
		d.receivers.Add(1)
		go d.receive(ctx, q)
		d.queue[in.EntityID] = q
	}
	q.Send(in)
}

func (d *manager) collector(ctx context.Context) {
	for {
		select {
		case in := <-d.collectCh:
			d.route(ctx, in)
		case <-ctx.Done():
			d.shutDownCh <- d.shutdown(ctx)
			return
		}
	}
}

// shutdown stops accepting points, indexes and stores everything already
// accepted, then releases the notifier.
func (d *manager) shutdown(ctx context.Context) error {
	close(d.stopped)
	d.mtx.Lock()
	d.closed = true
	d.mtx.Unlock()

Drain:
	for {
		select {
		case in := <-d.collectCh:
			d.route(ctx, in)
		default:
			break Drain
		}
	}

	for _, q := range d.queue {
		q.Close()
	}
	d.receivers.Wait()

	err := d.dbTxExecutor.shutdown()
	d.cancelNotifier()
	if err != nil {
		return fmt.Errorf("dispatcher shutdown: %w", err)
	}
	return nil
}
