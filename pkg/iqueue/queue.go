// Package iqueue implements an unbounded channel backed by a linked list.
package iqueue

import (
	"container/list"
	"sync"
)

func New[T any]() *Queue[T] {
	return &Queue[T]{
		queue: list.New(),
		send:  make(chan T, 1),
		recv:  make(chan T, 1),
	}
}

// Queue buffers every value sent to it until the receiver picks it up, so
// Send never blocks on a slow consumer. Loop must run for values to flow.
type Queue[T any] struct {
	mtx   sync.Mutex
	queue *list.List
	send  chan T
	recv  chan T
}

func (iq *Queue[T]) Send(v T) {
	iq.send <- v
}

func (iq *Queue[T]) Receive() <-chan T {
	return iq.recv
}

// Len is the number of values buffered between Send and Receive.
func (iq *Queue[T]) Len() int {
	iq.mtx.Lock()
	defer iq.mtx.Unlock()
	return iq.queue.Len()
}

// Close stops accepting values. The receive channel is closed once every
// buffered value was delivered.
func (iq *Queue[T]) Close() {
	close(iq.send)
}

func (iq *Queue[T]) Loop() {
	send := iq.send
	for {
		front := iq.front()
		if front != nil {
			select {
			case iq.recv <- front.Value.(T):
				iq.remove(front)
			case value, ok := <-send:
				if ok {
					iq.push(value)
				} else {
					send = nil
				}
			}
			continue
		}

		if send == nil {
			close(iq.recv)
			return
		}
		value, ok := <-send
		if !ok {
			close(iq.recv)
			return
		}
		iq.push(value)
	}
}

func (iq *Queue[T]) front() *list.Element {
	iq.mtx.Lock()
	defer iq.mtx.Unlock()
	return iq.queue.Front()
}

func (iq *Queue[T]) push(v T) {
	iq.mtx.Lock()
	iq.queue.PushBack(v)
	iq.mtx.Unlock()
}

func (iq *Queue[T]) remove(e *list.Element) {
	iq.mtx.Lock()
	iq.queue.Remove(e)
	iq.mtx.Unlock()
}
