// Package notify publishes cluster bridging events to Redis.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/logging"
	notifyDb "github.com/go-sod/weld/internal/notify/database"
	"github.com/go-sod/weld/internal/notify/model"
	"github.com/go-sod/weld/pkg/rworker"
)

type ProvideFn = func(chan<- error) (Manager, error)

type Notifier interface {
	Notify(events ...model.Event)
}

type Manager interface {
	Notifier
	Run(context.Context) error
	Stop()
}

// Publisher delivers an encoded batch to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Close() error
}

type Options struct {
	interval             time.Duration
	requestTimeout       time.Duration
	maxConcurrentRequest int
	channel              string
}

type Option func(*manager)

func WithInterval(t time.Duration) Option {
	return func(o *manager) {
		o.opts.interval = t
	}
}

func WithRequestTimeout(t time.Duration) Option {
	return func(o *manager) {
		o.opts.requestTimeout = t
	}
}

func WithMaxConcurrentRequest(n int) Option {
	return func(o *manager) {
		o.opts.maxConcurrentRequest = n
	}
}

func WithChannel(ch string) Option {
	return func(o *manager) {
		o.opts.channel = ch
	}
}

// WithPublisher sets the destination of the batches. Without one the
// manager drops every event.
func WithPublisher(p Publisher) Option {
	return func(o *manager) {
		o.publisher = p
	}
}

// New returns a notification manager. db keeps unpublished batches across
// restarts and may be nil.
func New(db *database.DB, shutdownCh chan<- error, opts ...Option) (*manager, error) {
	m := &manager{
		shutdownCh: shutdownCh,
		pending:    map[string][]model.Event{},
		opts: Options{
			interval:             5 * time.Second,
			requestTimeout:       5 * time.Second,
			maxConcurrentRequest: 16,
			channel:              "weld:clusters",
		},
	}
	if db != nil {
		m.batchDb = notifyDb.New(db)
	}
	for _, f := range opts {
		f(m)
	}
	if m.opts.interval <= 0 {
		return nil, fmt.Errorf("notify interval must be positive, got %v", m.opts.interval)
	}
	if m.opts.maxConcurrentRequest < 1 {
		m.opts.maxConcurrentRequest = 1
	}
	return m, nil
}

type manager struct {
	mtx        sync.Mutex
	opts       Options
	batchDb    *notifyDb.DB
	publisher  Publisher
	shutdownCh chan<- error
	pending    map[string][]model.Event
	cancel     func()
}

func (m *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	if err := m.initialize(ctx); err != nil {
		cancel()
		return fmt.Errorf("can not start notify manager: %w", err)
	}
	go m.notifier(ctx)
	return nil
}

func (m *manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *manager) Notify(events ...model.Event) {
	if m.publisher == nil {
		return
	}
	m.mtx.Lock()
	for i := range events {
		m.pending[events[i].EntityID] = append(m.pending[events[i].EntityID], events[i])
	}
	m.mtx.Unlock()
}

// initialize requeues batches left over by the previous run.
func (m *manager) initialize(ctx context.Context) error {
	if m.batchDb == nil {
		return nil
	}
	batches, err := m.batchDb.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch pending batches: %w", err)
	}
	for i := range batches {
		m.Notify(batches[i].Events...)
		if err := m.batchDb.Delete(ctx, batches[i]); err != nil {
			return fmt.Errorf("unable delete batch on initialize: %w", err)
		}
	}
	return nil
}

// take removes and returns every pending event.
func (m *manager) take() map[string][]model.Event {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	pending := m.pending
	m.pending = map[string][]model.Event{}
	return pending
}

// shutdown stores the events that could not be published.
func (m *manager) shutdown() error {
	var err error
	if m.publisher != nil {
		err = m.publisher.Close()
	}
	if m.batchDb == nil {
		return err
	}
	for entityID, events := range m.take() {
		if len(events) == 0 {
			continue
		}
		if storeErr := m.batchDb.Store(context.Background(), model.NewBatch(entityID, events)); storeErr != nil {
			return fmt.Errorf("notify shutdown: unable store batch: %w", storeErr)
		}
	}
	return err
}

func (m *manager) notifier(ctx context.Context) {
	logger := logging.FromContext(ctx)
	defer func() {
		m.shutdownCh <- m.shutdown()
	}()
	ticker := time.NewTicker(m.opts.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.flush(ctx); err != nil {
				logger.Errorf("notify: %v", err)
			}
		case <-ctx.Done():
			if err := m.flush(context.Background()); err != nil {
				logger.Errorf("notify: final flush: %v", err)
			}
			return
		}
	}
}

// flush publishes one batch per entity. Batches that fail stay pending.
func (m *manager) flush(ctx context.Context) error {
	pending := m.take()
	if len(pending) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	rateCh := make(chan struct{}, m.opts.maxConcurrentRequest)
	errCh := make(chan error, len(pending))
	for entityID, events := range pending {
		entityID, events := entityID, events
		rworker.Job(&wg, func() error {
			if err := m.publish(ctx, model.NewBatch(entityID, events)); err != nil {
				m.Notify(events...)
				return fmt.Errorf("publish entity %s: %w", entityID, err)
			}
			return nil
		}, rateCh, errCh)
	}
	wg.Wait()
	close(errCh)
	return <-errCh
}

func (m *manager) publish(ctx context.Context, batch model.Batch) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.requestTimeout)
	defer cancel()
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("unable encode json data: %w", err)
	}
	return m.publisher.Publish(ctx, m.opts.channel, payload)
}

// NewRedisPublisher returns a Publisher backed by Redis PUBLISH.
func NewRedisPublisher(cfg *Config) Publisher {
	return &redisPublisher{client: redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})}
}

type redisPublisher struct {
	client *redis.Client
}

func (r *redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *redisPublisher) Close() error {
	return r.client.Close()
}
