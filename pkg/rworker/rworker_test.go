package rworker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_Limit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		limit int
		jobs  int
	}{
		{name: "single", limit: 1, jobs: 10},
		{name: "zero_means_one", limit: 0, jobs: 5},
		{name: "parallel", limit: 4, jobs: 32},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var running, peak, done int64
			p := New(test.limit)
			for i := 0; i < test.jobs; i++ {
				p.Go(func() error {
					n := atomic.AddInt64(&running, 1)
					for {
						old := atomic.LoadInt64(&peak)
						if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					atomic.AddInt64(&running, -1)
					atomic.AddInt64(&done, 1)
					return nil
				})
			}
			if err := p.Wait(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			limit := int64(test.limit)
			if limit < 1 {
				limit = 1
			}
			if peak > limit {
				t.Errorf("concurrent jobs, got: %v, expected at most: %v", peak, limit)
			}
			if done != int64(test.jobs) {
				t.Errorf("finished jobs, got: %v, expected: %v", done, test.jobs)
			}
		})
	}
}

func TestPool_Errors(t *testing.T) {
	t.Parallel()
	errA, errB := errors.New("a"), errors.New("b")
	p := New(2)
	p.Go(func() error { return errA })
	p.Go(func() error { return nil })
	p.Go(func() error { return errB })

	err := p.Wait()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("joined error, got: %v, expected both %v and %v", err, errA, errB)
	}
}

func TestJob(t *testing.T) {
	t.Parallel()
	var wg sync.WaitGroup
	rate := make(chan struct{}, 2)
	errCh := make(chan error, 1)
	expected := errors.New("job failed")

	Job(&wg, func() error { return expected }, rate, errCh)
	Job(&wg, func() error { return nil }, rate, errCh)
	wg.Wait()

	select {
	case err := <-errCh:
		if !errors.Is(err, expected) {
			t.Errorf("job error, got: %v, expected: %v", err, expected)
		}
	default:
		t.Errorf("expected job error to be reported")
	}
}
