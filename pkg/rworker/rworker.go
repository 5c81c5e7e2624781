// Package rworker runs jobs with a bound on how many run at once.
package rworker

import (
	"errors"
	"sync"
)

// Job runs fn on a new goroutine once a slot in rate is free. A failure is
// reported on errCh when the channel has room and dropped otherwise.
func Job(wg *sync.WaitGroup, fn func() error, rate chan struct{}, errCh chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		rate <- struct{}{}
		defer func() { <-rate }()
		if err := fn(); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
}

// Pool collects every job error instead of dropping them.
type Pool struct {
	wg   sync.WaitGroup
	rate chan struct{}

	mtx  sync.Mutex
	errs []error
}

// New returns a pool running at most limit jobs at a time; limit < 1 means one.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{rate: make(chan struct{}, limit)}
}

func (p *Pool) Go(fn func() error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.rate <- struct{}{}
		defer func() { <-p.rate }()
		if err := fn(); err != nil {
			p.mtx.Lock()
			p.errs = append(p.errs, err)
			p.mtx.Unlock()
		}
	}()
}

// Wait blocks until every job finished and returns their joined errors.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return errors.Join(p.errs...)
}
