package workerpool

import (
	"sync"
)

// Queue is a FIFO of jobs with one logical producer side and any number of
// consumers. A capacity of zero means the queue is unbounded.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	jobs     []Job
	capacity int
	closed   bool
}

// NewQueue constructs a queue. A capacity of zero or less is unbounded.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}

	q := Queue{
		capacity: capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)

	return &q
}

// Push appends a job to the back of the queue. Push only blocks when the
// queue is bounded and full. Pushing to a closed queue returns ErrClosed.
func (q *Queue) Push(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.capacity > 0 && len(q.jobs) >= q.capacity {
		q.notFull.Wait()
	}

	if q.closed {
		return ErrClosed
	}

	q.jobs = append(q.jobs, job)
	q.notEmpty.Signal()

	return nil
}

// Pop removes the job at the front of the queue, blocking until one is
// available. After Close, the remaining jobs are still handed out and
// Pop reports false once the queue is empty.
func (q *Queue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && len(q.jobs) == 0 {
		q.notEmpty.Wait()
	}

	if len(q.jobs) == 0 {
		return nil, false
	}

	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	q.notFull.Signal()

	return job, true
}

// Close closes the producer side of the queue and wakes every blocked
// consumer and producer.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len returns the number of jobs waiting in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.jobs)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}
