package coordinator

import (
	"context"
	"sync"
)

// engineQueue runs engine calls one at a time in submission order on a single
// goroutine. Submitting never blocks, so the event loop can hand work to the
// engine without waiting on it.
type engineQueue struct {
	mu   sync.Mutex
	jobs []func()
	wake chan struct{}
}

func newEngineQueue() *engineQueue {
	return &engineQueue{wake: make(chan struct{}, 1)}
}

// submit appends job to the queue.
func (q *engineQueue) submit(job func()) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *engineQueue) next() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, false
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return job, true
}

// run executes queued jobs until ctx is cancelled. Jobs still queued at that
// point are dropped.
func (q *engineQueue) run(ctx context.Context) {
	for {
		for {
			if ctx.Err() != nil {
				return
			}
			job, ok := q.next()
			if !ok {
				break
			}
			job()
		}

		select {
		case <-q.wake:
		case <-ctx.Done():
			return
		}
	}
}
