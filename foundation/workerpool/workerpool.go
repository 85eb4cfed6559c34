// Package workerpool provides a fixed size pool of goroutines that execute
// jobs pulled from a shared FIFO queue.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Set of errors returned by the pool.
var (
	ErrInvalidSize = errors.New("worker pool size must be at least 1")
	ErrClosed      = errors.New("worker pool is shut down")
	ErrNilJob      = errors.New("job must not be nil")
	ErrJobPanicked = errors.New("job panicked")
)

// Job represents a one-shot unit of work. Nothing is returned to the
// submitter.
type Job func()

// Stats represents a snapshot of the pool counters. The counters are
// updated without a shared lock so a snapshot is eventually consistent:
// Completed never exceeds Submitted, but a job whose Do call has returned
// may not be counted as completed yet.
type Stats struct {
	Workers   int    `json:"workers"`
	Active    int64  `json:"active"`
	Pending   int    `json:"pending"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Panicked  uint64 `json:"panicked"`
}

// =============================================================================

// Pool manages a fixed set of workers pulling from one queue.
type Pool struct {
	size          int
	queue         *Queue
	queueCapacity int
	wg            sync.WaitGroup
	shutdown      sync.Once
	evHandler     func(v string, args ...any)
	panicHandler  func(workerID int, v any)
	metrics       *Metrics

	active    atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
}

// WithEvHandler sets a function to receive pool events.
func WithEvHandler(evHandler func(v string, args ...any)) func(p *Pool) {
	return func(p *Pool) {
		if evHandler != nil {
			p.evHandler = evHandler
		}
	}
}

// WithQueueCapacity bounds the queue. Submit blocks while the queue is
// full. Zero, the default, leaves the queue unbounded.
func WithQueueCapacity(capacity int) func(p *Pool) {
	return func(p *Pool) {
		p.queueCapacity = capacity
	}
}

// WithPanicHandler sets a function called with the recovered value when
// a job panics.
func WithPanicHandler(panicHandler func(workerID int, v any)) func(p *Pool) {
	return func(p *Pool) {
		p.panicHandler = panicHandler
	}
}

// WithMetrics sets the prometheus collectors the pool updates.
func WithMetrics(m *Metrics) func(p *Pool) {
	return func(p *Pool) {
		p.metrics = m
	}
}

// New constructs a pool and starts size workers. The pool will not return
// until every worker is running.
func New(size int, options ...func(p *Pool)) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("got %d: %w", size, ErrInvalidSize)
	}

	p := Pool{
		size:      size,
		evHandler: func(v string, args ...any) {},
	}

	for _, option := range options {
		option(&p)
	}

	p.queue = NewQueue(p.queueCapacity)

	// Set waitgroup to match the number of G's we need.
	p.wg.Add(size)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	for id := 0; id < size; id++ {
		go func(id int) {
			defer p.wg.Done()
			hasStarted <- true
			p.worker(id)
		}(id)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < size; i++ {
		<-hasStarted
	}

	p.evHandler("workerpool: New: started: workers[%d]", size)

	return &p, nil
}

// Submit places the job on the queue. Submit does not block unless the
// queue was bounded with WithQueueCapacity and is full.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	// Count the job before a worker can see it.
	p.submitted.Add(1)
	if err := p.queue.Push(job); err != nil {
		p.submitted.Add(^uint64(0))
		return err
	}

	if p.metrics != nil {
		p.metrics.Submitted.Inc()
		p.metrics.Pending.Set(float64(p.queue.Len()))
	}

	return nil
}

// Do submits the job and waits for it to finish. ErrJobPanicked is returned
// if the job panicked. If the context is done first, Do stops waiting and
// returns the context error, the job itself is never cancelled.
func (p *Pool) Do(ctx context.Context, job Job) error {
	if job == nil {
		return ErrNilJob
	}

	done := make(chan error, 1)
	wrapped := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrJobPanicked, r)
				panic(r)
			}
		}()

		job()
		done <- nil
	}

	if err := p.Submit(wrapped); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown closes the queue and waits for every worker to exit. Jobs
// already in the queue and jobs being executed run to completion.
func (p *Pool) Shutdown() {
	p.shutdown.Do(func() {
		p.evHandler("workerpool: shutdown: started")
		defer p.evHandler("workerpool: shutdown: completed")

		p.evHandler("workerpool: shutdown: close queue: pending[%d]", p.queue.Len())
		p.queue.Close()

		p.evHandler("workerpool: shutdown: terminate workers")
		p.wg.Wait()
	})
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return p.size
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {

	// Load the finished counters before submitted so the snapshot never
	// shows more finished jobs than submitted ones.
	completed := p.completed.Load()
	panicked := p.panicked.Load()

	return Stats{
		Workers:   p.Size(),
		Active:    p.active.Load(),
		Pending:   p.queue.Len(),
		Submitted: p.submitted.Load(),
		Completed: completed,
		Panicked:  panicked,
	}
}

// =============================================================================

// worker pulls jobs until the queue is closed and empty.
func (p *Pool) worker(id int) {
	p.evHandler("workerpool: worker[%d]: G started", id)
	defer p.evHandler("workerpool: worker[%d]: G completed", id)

	for {
		job, ok := p.queue.Pop()
		if !ok {
			p.evHandler("workerpool: worker[%d]: queue closed: shutting down", id)
			return
		}

		if p.metrics != nil {
			p.metrics.Pending.Set(float64(p.queue.Len()))
		}

		p.run(id, job)
	}
}

// run executes a single job. A panic is recovered and reported so the
// worker can continue with the next job.
func (p *Pool) run(id int, job Job) {
	p.active.Add(1)
	if p.metrics != nil {
		p.metrics.Active.Inc()
	}

	defer func() {
		p.active.Add(-1)
		if p.metrics != nil {
			p.metrics.Active.Dec()
		}

		if r := recover(); r != nil {
			p.panicked.Add(1)
			if p.metrics != nil {
				p.metrics.Panicked.Inc()
			}

			p.evHandler("workerpool: worker[%d]: job PANIC: %v", id, r)
			if p.panicHandler != nil {
				p.panicHandler(id, r)
			}
			return
		}

		p.completed.Add(1)
		if p.metrics != nil {
			p.metrics.Completed.Inc()
		}
	}()

	job()
}
