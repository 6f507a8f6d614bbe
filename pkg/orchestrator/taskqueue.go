// Copyright 2025 Mangwale
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Task is one fire-and-forget unit of work the orchestrator submits
// once a reply has been produced; ProcessMessage submits the
// training and sentiment recording tasks.
type Task func(ctx context.Context)

// TaskQueue is a bounded-capacity, drop-on-overflow background
// worker pool. ProcessMessage never blocks on it; a full queue drops
// the task and bumps a counter instead.
type TaskQueue struct {
	tasks   chan Task
	done    chan struct{}
	dropped prometheus.Counter
}

// NewTaskQueue starts workers goroutines draining a channel of
// capacity. Submissions beyond capacity are dropped rather than
// blocking the caller.
func NewTaskQueue(capacity, workers int) *TaskQueue {
	if capacity <= 0 {
		capacity = 256
	}
	if workers <= 0 {
		workers = 4
	}

	q := &TaskQueue{
		tasks: make(chan Task, capacity),
		done:  make(chan struct{}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_background_tasks_dropped_total",
			Help: "Fire-and-forget orchestrator tasks dropped because the queue was full.",
		}),
	}
	_ = prometheus.Register(q.dropped) // already-registered is not fatal (tests build multiple queues)

	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

func (q *TaskQueue) worker() {
	for {
		select {
		case t, ok := <-q.tasks:
			if !ok {
				return
			}
			t(context.Background())
		case <-q.done:
			return
		}
	}
}

// Submit enqueues t without blocking. If the queue is full, t is
// dropped and the drop counter is incremented.
func (q *TaskQueue) Submit(t Task) {
	select {
	case q.tasks <- t:
	default:
		q.dropped.Inc()
	}
}

// Close stops all workers. Queued-but-not-yet-run tasks are
// discarded.
func (q *TaskQueue) Close() {
	close(q.done)
}
