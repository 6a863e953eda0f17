package mode

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Work applies one deferred write to a backend.
type Work func(ctx context.Context, b Backend) error

// Task is a write buffered during a transition.
type Task struct {
	ID       string
	Seq      int64 // issue order, strictly increasing
	Author   string
	Op       string
	Kind     string
	RecordID string
	Queued   time.Time
	Work     Work
}

// taskQueue is a thread-safe FIFO queue of deferred writes.
//
// The queue is unbounded: a transition may take as long as the migration
// pass, and consumer writes must never block on it.
//
// Tasks are stamped from a monotonic counter at enqueue time, so replay order
// equals issue order even when writers race.
type taskQueue struct {
	mu    sync.Mutex
	tasks []Task
	seq   atomic.Int64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks: make([]Task, 0, 16),
	}
}

// Enqueue stamps t with the next sequence number and appends it.
// Returns the stamped task.
func (q *taskQueue) Enqueue(t Task) Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	t.Seq = q.seq.Add(1)
	if t.ID == "" {
		t.ID = fmt.Sprintf("task-%d", t.Seq)
	}
	q.tasks = append(q.tasks, t)
	return t
}

// TryDequeue removes and returns the front task.
// Returns (Task{}, false) if the queue is empty.
func (q *taskQueue) TryDequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return Task{}, false
	}

	t := q.tasks[0]

	// Nil out the slot so the Work closure and its record can be collected.
	q.tasks[0] = Task{}

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}

	return t, true
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
