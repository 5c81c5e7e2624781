package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-sod/weld/internal/logging"
	"github.com/go-sod/weld/internal/point/model"
)

func newDBTxExecutor(opts dbTxExecutorOptions) *dbTxExecutor {
	return &dbTxExecutor{opts: opts}
}

// dbTxExecutorOptions Returns the structure with configuration options
type dbTxExecutorOptions struct {
	flushSize int
	flushTime time.Duration
	appendFn  appendPointsFn
}

// A structure that represents the database transaction execution service.
// Accumulates a queue of data and inserts it in bulk into persistent storage.
type dbTxExecutor struct {
	mtx sync.Mutex
	// serializes writes so a flush never overtakes an earlier one
	flushMtx sync.Mutex

	opts dbTxExecutorOptions
	//  Buffer that accumulates points for adding
	buf []model.Point
}

// take empties the buffer and returns its previous content.
func (tx *dbTxExecutor) take() []model.Point {
	tx.mtx.Lock()
	defer tx.mtx.Unlock()
	if len(tx.buf) == 0 {
		return nil
	}
	tmpBuf := make([]model.Point, len(tx.buf))
	copy(tmpBuf, tx.buf)
	tx.buf = tx.buf[:0]
	return tmpBuf
}

// Urgently inserts all data from the buffer into persistent storage or returns an error
func (tx *dbTxExecutor) shutdown() error {
	tx.flushMtx.Lock()
	defer tx.flushMtx.Unlock()
	if err := tx.opts.appendFn(context.Background(), tx.take()); err != nil {
		return fmt.Errorf("txExecutor: append many operation failed: %w", err)
	}
	return nil
}

// This is the main method for adding data. It adds data to the buffer.
// If the buffer is full, it calls the bulkAppend method
func (tx *dbTxExecutor) append(ctx context.Context, data model.Point) {
	tx.mtx.Lock()
	tx.buf = append(tx.buf, data)
	bufLen := len(tx.buf)
	tx.mtx.Unlock()

	if tx.opts.flushSize > 0 && bufLen >= tx.opts.flushSize {
		tx.bulkAppend(ctx)
	}
}

// Bulk adds data to persistent storage and clears the buffer
func (tx *dbTxExecutor) bulkAppend(ctx context.Context) {
	logger := logging.FromContext(ctx)

	tx.flushMtx.Lock()
	defer tx.flushMtx.Unlock()
	tmpBuf := tx.take()
	if len(tmpBuf) == 0 {
		return
	}
	if err := tx.opts.appendFn(context.Background(), tmpBuf); err != nil {
		logger.Errorf("txExecutor: append many operation failed: %v", err)
	}
}

// Every n seconds, data from the buffer must be inserted into the database
func (tx *dbTxExecutor) flusher(ctx context.Context) {
	ticker := time.NewTicker(tx.opts.flushTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tx.bulkAppend(ctx)
		case <-ctx.Done():
			return
		}
	}
}
