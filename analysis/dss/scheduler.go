// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dss

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// delivery is an encoded message waiting for its recipient
type delivery struct {
	to       *blockState
	data     []byte
	priority int
	seq      int
}

// priority orders the pending messages of the sequential scheduler: the messages of the counterexample search
// come before the preconditions.
func priority(m Message) int {
	switch {
	case m.Kind == Postcondition && m.Target:
		return 0
	case m.Kind == Postcondition:
		return 1
	}
	return 2
}

// deliveryQueue implements heap.Interface, ordered by priority, rank of the recipient, then arrival
type deliveryQueue []*delivery

func (q deliveryQueue) Len() int { return len(q) }

func (q deliveryQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.to.rank != b.to.rank {
		return a.to.rank < b.to.rank
	}
	return a.seq < b.seq
}

func (q deliveryQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *deliveryQueue) Push(x any) { *q = append(*q, x.(*delivery)) }

func (q *deliveryQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}

// sequential handles the messages one at a time in a deterministic order
func (r *run) sequential(ctx context.Context) error {
	seed, err := r.seed()
	if err != nil {
		return err
	}
	q := &deliveryQueue{}
	seq := 0
	heap.Push(q, &delivery{to: r.byEntry[r.o.graph.Entry.Entry.ID], data: seed, priority: 2})
	for q.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := heap.Pop(q).(*delivery)
		r.delivered()
		out, err := r.process(ctx, d.to, d.data)
		if err != nil {
			return err
		}
		for _, m := range out {
			if m.Kind == Result {
				r.conclude(m)
				return nil
			}
			data, err := r.encode(m)
			if err != nil {
				d.to.fail(m, err)
				continue
			}
			for _, to := range r.recipients(d.to, m) {
				seq++
				heap.Push(q, &delivery{to: to, data: data, priority: priority(m), seq: seq})
			}
		}
	}
	return nil
}

// mailbox is the unbounded FIFO queue of a block worker
type mailbox struct {
	mu    sync.Mutex
	queue [][]byte
	ready chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) put(data []byte) {
	m.mu.Lock()
	m.queue = append(m.queue, data)
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// take returns the next message, waiting for one. ok is false when done is closed or ctx is cancelled first,
// even if messages are still queued.
func (m *mailbox) take(ctx context.Context, done <-chan struct{}) (data []byte, ok bool) {
	for {
		select {
		case <-done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		default:
		}
		m.mu.Lock()
		if len(m.queue) > 0 {
			data = m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return data, true
		}
		m.mu.Unlock()
		select {
		case <-m.ready:
		case <-done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// async runs one goroutine per block. The exchange stops when a result is produced, or when no message is in
// flight: every delivery is counted before the handling of the message that produced it ends. A result cancels
// the analyses still running in other workers.
func (r *run) async(ctx context.Context) error {
	seed, err := r.seed()
	if err != nil {
		return err
	}
	hctx, halt := context.WithCancel(ctx)
	defer halt()
	g, gctx := errgroup.WithContext(hctx)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			halt()
		})
	}
	// stopped is true when the exchange ended without the parent context being cancelled
	stopped := func() bool {
		select {
		case <-done:
			return ctx.Err() == nil
		default:
			return false
		}
	}

	var inFlight atomic.Int64
	boxes := make(map[*blockState]*mailbox, len(r.blocks))
	for _, bs := range r.blocks {
		boxes[bs] = newMailbox()
	}
	deliver := func(to *blockState, data []byte) {
		inFlight.Add(1)
		boxes[to].put(data)
	}
	deliver(r.byEntry[r.o.graph.Entry.Entry.ID], seed)

	for _, bs := range r.blocks {
		bs := bs
		box := boxes[bs]
		g.Go(func() error {
			for {
				data, ok := box.take(gctx, done)
				if !ok {
					if stopped() {
						return nil
					}
					return gctx.Err()
				}
				r.delivered()
				out, err := r.process(gctx, bs, data)
				if err != nil {
					if stopped() {
						return nil
					}
					return err
				}
				for _, m := range out {
					if m.Kind == Result {
						r.conclude(m)
						stop()
						return nil
					}
					data, err := r.encode(m)
					if err != nil {
						bs.fail(m, err)
						continue
					}
					for _, to := range r.recipients(bs, m) {
						deliver(to, data)
					}
				}
				if inFlight.Add(-1) == 0 {
					stop()
				}
			}
		})
	}
	return g.Wait()
}
