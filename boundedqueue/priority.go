// Package boundedqueue: the priority lane, a bounded blocking min-heap
// keyed by (priority, counter) as specified in §4/§9 ("a standard
// thread-safe priority queue with a monotonic counter to break ties").
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package boundedqueue

import (
	"container/heap"
	"sync"
	"time"
)

// PriorityItem is anything that can be ordered by (priority asc, counter
// asc) — smaller priority value sorts first, per spec.md's "smaller =
// higher" priority convention.
type PriorityItem interface {
	QueuePriority() int
	QueueCounter() uint64
}

type innerHeap[T PriorityItem] []T

func (h innerHeap[T]) Len() int { return len(h) }
func (h innerHeap[T]) Less(i, j int) bool {
	if h[i].QueuePriority() != h[j].QueuePriority() {
		return h[i].QueuePriority() < h[j].QueuePriority()
	}
	return h[i].QueueCounter() < h[j].QueueCounter()
}
func (h innerHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *innerHeap[T]) Push(x any)   { *h = append(*h, x.(T)) }
func (h *innerHeap[T]) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Priority is a bounded, blocking priority queue ordered by
// (priority asc, counter asc).
type Priority[T PriorityItem] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	h        innerHeap[T]
	cap      int
	closed   bool
}

func NewPriority[T PriorityItem](capacity int) *Priority[T] {
	q := &Priority[T]{cap: capacity}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	heap.Init(&q.h)
	return q
}

func (q *Priority[T]) Put(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.h.Len() >= q.cap && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}
	heap.Push(&q.h, v)
	q.notEmpty.Signal()
	return true
}

func (q *Priority[T]) Get(timeout time.Duration) (v T, ok bool) {
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.h.Len() == 0 && !q.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return v, false
		}
		waitWithTimeout(&q.mu, q.notEmpty, remaining)
	}
	if q.h.Len() == 0 {
		return v, false
	}
	item := heap.Pop(&q.h).(T)
	q.notFull.Signal()
	return item, true
}

func (q *Priority[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

func (q *Priority[T]) Drain() {
	q.mu.Lock()
	q.h = q.h[:0]
	q.notFull.Broadcast()
	q.mu.Unlock()
}

func (q *Priority[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
	q.mu.Unlock()
}
