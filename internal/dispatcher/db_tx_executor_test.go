package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-sod/weld/internal/point/model"
	"github.com/go-sod/weld/pkg/geom"
)

func testPoints(n int) []model.Point {
	points := make([]model.Point, n)
	for i := range points {
		points[i] = model.NewPoint("test-data", geom.Vec3{X: float64(i), Y: 1, Z: 1}, time.Now())
	}
	return points
}

type appendRecorder struct {
	mtx   sync.Mutex
	calls [][]model.Point
	err   error
}

func (r *appendRecorder) append(_ context.Context, points []model.Point) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.calls = append(r.calls, points)
	return r.err
}

func (r *appendRecorder) total() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	var n int
	for _, c := range r.calls {
		n += len(c)
	}
	return n
}

func TestDbTxExecutorFlusher(t *testing.T) {
	t.Parallel()
	rec := &appendRecorder{}
	txExecutor := newDBTxExecutor(dbTxExecutorOptions{flushTime: 10 * time.Millisecond, appendFn: rec.append})
	txExecutor.buf = testPoints(5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		txExecutor.flusher(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for rec.total() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if rec.total() != 5 {
		t.Errorf("calling the flusher method, the length of the inserted data got: %v, expected: %v", rec.total(), 5)
	}
	if len(txExecutor.buf) != 0 {
		t.Errorf("calling the flusher method, the length of buffer got: %v, expected: %v", len(txExecutor.buf), 0)
	}
}

func TestDbTxExecutorAppend(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		flushSize      int
		items          int
		expectedBufLen int
		expectedCalls  int
	}{
		{name: "below_flush_size", flushSize: 10, items: 3, expectedBufLen: 3},
		{name: "reach_flush_size", flushSize: 3, items: 3, expectedBufLen: 0, expectedCalls: 1},
		{name: "over_flush_size", flushSize: 2, items: 5, expectedBufLen: 1, expectedCalls: 2},
		{name: "size_disabled", flushSize: 0, items: 4, expectedBufLen: 4},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			rec := &appendRecorder{}
			txExecutor := newDBTxExecutor(dbTxExecutorOptions{flushSize: test.flushSize, appendFn: rec.append})
			for _, item := range testPoints(test.items) {
				txExecutor.append(context.Background(), item)
			}

			if len(txExecutor.buf) != test.expectedBufLen {
				t.Errorf(
					"calling the append method, the length of the buffer got: %v, expected: %v",
					len(txExecutor.buf),
					test.expectedBufLen,
				)
			}
			if len(rec.calls) != test.expectedCalls {
				t.Errorf("calling the append method, flushes got: %v, expected: %v", len(rec.calls), test.expectedCalls)
			}
		})
	}
}

func TestDbTxExecutorBulkAppend(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		buf           []model.Point
		expectedLen   int
		expectedCalls int
	}{
		{name: "positive_bulk_append", buf: testPoints(5), expectedLen: 5, expectedCalls: 1},
		{name: "empty_buffer", buf: []model.Point{}, expectedLen: 0, expectedCalls: 0},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			rec := &appendRecorder{}
			txExecutor := newDBTxExecutor(dbTxExecutorOptions{appendFn: rec.append})
			txExecutor.buf = test.buf
			txExecutor.bulkAppend(context.Background())

			if rec.total() != test.expectedLen {
				t.Errorf("calling the bulkAppend method, the length of the inserted data got: %v, expected: %v", rec.total(), test.expectedLen)
			}
			if len(rec.calls) != test.expectedCalls {
				t.Errorf("calling the bulkAppend method, calls got: %v, expected: %v", len(rec.calls), test.expectedCalls)
			}
			if len(txExecutor.buf) != 0 {
				t.Errorf("calling the bulkAppend method, the length of buffer got: %v, expected: %v", len(txExecutor.buf), 0)
			}
		})
	}
}

func TestDbTxExecutorShutdown(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		buf         []model.Point
		appendErr   error
		expectedLen int
	}{
		{name: "positive_shutdown", buf: testPoints(5), expectedLen: 5},
		{name: "negative_shutdown", buf: testPoints(1), appendErr: errors.New("test"), expectedLen: 1},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			rec := &appendRecorder{err: test.appendErr}
			txExecutor := newDBTxExecutor(dbTxExecutorOptions{appendFn: rec.append})
			txExecutor.buf = test.buf
			err := txExecutor.shutdown()

			if !errors.Is(err, test.appendErr) || (test.appendErr == nil) != (err == nil) {
				t.Errorf("calling the shutdown method, error got: %v, expected: %v", err, test.appendErr)
			}
			if rec.total() != test.expectedLen {
				t.Errorf("calling the shutdown method, the length of the inserted data got: %v, expected: %v", rec.total(), test.expectedLen)
			}
			if len(txExecutor.buf) != 0 {
				t.Errorf("calling the shutdown method, the length of buffer got: %v, expected: %v", len(txExecutor.buf), 0)
			}
		})
	}
}
