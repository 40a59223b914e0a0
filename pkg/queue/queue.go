// ppgscope
// Copyright (c) 2026 The ppgscope Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of ppgscope.
//
// ppgscope is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ppgscope is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ppgscope.  If not, see <http://www.gnu.org/licenses/>.

// Package queue provides an unbounded in-memory FIFO queue. Push never
// blocks and never fails, so producers are never slowed by a lagging
// consumer; the queue grows until it is drained.
package queue

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ppgscope/ppgscope/pkg/helpers/syncutil"
)

// Queue is safe for any number of producers and consumers, though each
// pipeline queue has a single consumer in practice.
type Queue[T any] struct {
	clock  clockwork.Clock
	notify chan struct{}
	items  []T
	mu     syncutil.Mutex
}

func New[T any]() *Queue[T] {
	return NewWithClock[T](nil)
}

// NewWithClock creates a queue whose Pop timeouts run on clock. A nil
// clock is the real one.
func NewWithClock[T any](clock clockwork.Clock) *Queue[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Queue[T]{
		clock:  clock,
		notify: make(chan struct{}, 1),
	}
}

// Push appends v to the tail of the queue and wakes a waiting consumer.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop removes the head of the queue without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// release the backing array once drained
		q.items = nil
	}
	return v, true
}

// Pop waits up to timeout for an item. It returns early once ctx is done,
// still handing back an item if one is already queued, so a consumer can
// keep draining after cancellation.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, bool) {
	if v, ok := q.TryPop(); ok {
		return v, true
	}

	timer := q.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if v, ok := q.TryPop(); ok {
				return v, true
			}
		case <-timer.Chan():
			return q.TryPop()
		case <-ctx.Done():
			return q.TryPop()
		}
	}
}

// PopBatch removes up to limit items without waiting, preserving order.
func (q *Queue[T]) PopBatch(limit int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(q.items) {
		limit = len(q.items)
	}

	out := make([]T, limit)
	copy(out, q.items[:limit])

	var zero T
	for i := range limit {
		q.items[i] = zero
	}
	q.items = q.items[limit:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
