// Package scrape periodically pulls points from remote targets into the
// dispatcher.
package scrape

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/internal/logging"
	"github.com/go-sod/weld/internal/point/model"
	"github.com/go-sod/weld/pkg/geom"
	"github.com/go-sod/weld/pkg/rworker"
)

type response struct {
	EntityID string `json:"entity"`
	Data     []struct {
		Vec       geom.Vec3 `json:"vec"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"data"`
}

type Manager interface {
	Run(context.Context) error
	Stop()
}

type ProvideFn = func(dispatcher.Manager, chan<- error) (Manager, error)

const UserAgent = "WELD/0.1"

type Options struct {
	maxConcurrentRequest  int
	requestTimeout        time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	scrapeInterval        time.Duration
}

type Option func(*manager)

func WithMaxConcurrentRequest(n int) Option {
	return func(o *manager) {
		o.opts.maxConcurrentRequest = n
	}
}

func WithInterval(t time.Duration) Option {
	return func(o *manager) {
		o.opts.scrapeInterval = t
	}
}

func WithRequestTimeout(t time.Duration) Option {
	return func(o *manager) {
		o.opts.requestTimeout = t
	}
}

func WithTargetUrls(m Targets) Option {
	return func(o *manager) {
		o.targets = m
	}
}

func New(dispatcher dispatcher.Manager, shutdownCh chan<- error, opts ...Option) (*manager, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher instance is not defined")
	}
	m := &manager{
		targets:    Targets{},
		shutdownCh: shutdownCh,
		dispatcher: dispatcher,
		opts: Options{
			maxConcurrentRequest:  64,
			requestTimeout:        10 * time.Second,
			tlsHandshakeTimeout:   10 * time.Second,
			responseHeaderTimeout: 10 * time.Second,
			scrapeInterval:        time.Second,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.opts.scrapeInterval <= 0 {
		return nil, fmt.Errorf("scrape interval must be positive, got %v", m.opts.scrapeInterval)
	}
	if m.opts.maxConcurrentRequest <= 0 {
		m.opts.maxConcurrentRequest = 1
	}
	m.client = &http.Client{
		Transport: &http.Transport{
			TLSHandshakeTimeout:   m.opts.tlsHandshakeTimeout,
			ResponseHeaderTimeout: m.opts.responseHeaderTimeout,
		},
	}
	return m, nil
}

type manager struct {
	opts       Options
	targets    Targets
	dispatcher dispatcher.Manager
	client     *http.Client
	shutdownCh chan<- error
	cancel     func()
}

func (s *manager) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Run starts the dispatcher and the scrape loop. The dispatcher stops with
// the scrape loop.
func (s *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	dispatcherCtx, cancelDispatcher := context.WithCancel(logging.WithLogger(context.Background(), logging.FromContext(ctx)))
	if err := s.dispatcher.Run(dispatcherCtx); err != nil {
		cancel()
		cancelDispatcher()
		return fmt.Errorf("dispatcher.Run: %w", err)
	}
	go func() {
		defer func() {
			cancelDispatcher()
			s.shutdownCh <- nil
		}()
		ticker := time.NewTicker(s.opts.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.scrapping(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (s *manager) scrape(ctx context.Context, url string) (response, error) {
	var response response
	ctx, cancel := context.WithTimeout(ctx, s.opts.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return response, fmt.Errorf("creating request error: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Add("User-Agent", UserAgent)
	req.Header.Add("Accept-Encoding", "gzip")
	resp, err := s.client.Do(req)
	if err != nil {
		return response, fmt.Errorf("sending request error: %w", err)
	}

	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return response, fmt.Errorf("unable create gzip.NewReader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return response, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return response, fmt.Errorf("response was not 200 OK: %s", body)
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&response); err != nil {
		return response, fmt.Errorf("decoding response error: %w", err)
	}

	return response, nil
}

func (s *manager) collect(target Target, resp response) error {
	entityID := resp.EntityID
	if target.EntityID != "" {
		entityID = target.EntityID
	}
	if entityID == "" {
		return fmt.Errorf("target %s reported no entity", target.URL)
	}
	sort.SliceStable(resp.Data, func(i, j int) bool {
		return resp.Data[i].CreatedAt.Before(resp.Data[j].CreatedAt)
	})
	points := make([]model.Point, 0, len(resp.Data))
	for _, dat := range resp.Data {
		if !dat.Vec.IsFinite() {
			continue
		}
		createdAt := dat.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		points = append(points, model.NewPoint(entityID, dat.Vec, createdAt))
	}
	if err := s.dispatcher.Collect(points...); err != nil {
		return fmt.Errorf("send to collect error: %w", err)
	}
	return nil
}

func (s *manager) scrapping(ctx context.Context) {
	wg := sync.WaitGroup{}
	logger := logging.FromContext(ctx)
	errCh := make(chan error, len(s.targets))
	rateCh := make(chan struct{}, s.opts.maxConcurrentRequest)

	for _, target := range s.targets {
		target := target
		urlData, err := url.Parse(target.URL)
		if err != nil {
			errCh <- fmt.Errorf("url parsing error: %w", err)
			continue
		}
		rworker.Job(&wg, func() error {
			resp, err := s.scrape(ctx, urlData.String())
			if err != nil {
				return fmt.Errorf("scrape error: %w", err)
			}
			return s.collect(target, resp)
		}, rateCh, errCh)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		logger.Errorf("scrape manager error: %v", err)
	}
}
