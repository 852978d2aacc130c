package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrStopped = errors.New("worker pool stopped")

// Job is one generation request for a session.
type Job struct {
	SessionID string
	Seq       uint64
	Prompt    string
}

// ProcessFunc handles a job. Its result is handed back to the submitter.
type ProcessFunc[R any] func(ctx context.Context, job Job) R

// DropFunc answers a job that was still queued when the pool stopped.
type DropFunc[R any] func(job Job, err error) R

// Pool runs jobs on a fixed set of goroutines. A job keeps running after its
// submitter stops waiting for it.
type Pool[R any] struct {
	process     ProcessFunc[R]
	drop        DropFunc[R]
	logger      *zap.Logger
	workerCount int
	queue       chan task[R]
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	// submitMu keeps Submit from enqueueing once Stop has begun draining.
	submitMu sync.RWMutex
}

type task[R any] struct {
	job    Job
	result chan R
}

func NewPool[R any](process ProcessFunc[R], workerCount, queueSize int, logger *zap.Logger) *Pool[R] {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool[R]{
		process:     process,
		logger:      logger,
		workerCount: workerCount,
		queue:       make(chan task[R], queueSize),
		stopChan:    make(chan struct{}),
	}
}

// OnDrop sets the handler for jobs still queued at Stop. Call it before Start.
func (p *Pool[R]) OnDrop(fn DropFunc[R]) { p.drop = fn }

func (p *Pool[R]) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("started worker goroutines", zap.Int("count", p.workerCount))
}

// Stop stops accepting jobs and waits for running ones to finish. Jobs no
// worker picked up are answered by the drop handler with ErrStopped.
func (p *Pool[R]) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()

	p.submitMu.Lock()
	defer p.submitMu.Unlock()
	dropped := 0
	for {
		select {
		case t := <-p.queue:
			dropped++
			if p.drop != nil {
				t.result <- p.drop(t.job, ErrStopped)
			}
		default:
			if dropped > 0 {
				p.logger.Warn("dropped queued jobs on stop", zap.Int("count", dropped))
			}
			return
		}
	}
}

// Submit enqueues job and returns a channel that receives its result. It
// blocks while the queue is full.
func (p *Pool[R]) Submit(ctx context.Context, job Job) (<-chan R, error) {
	t := task[R]{job: job, result: make(chan R, 1)}
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	select {
	case <-p.stopChan:
		return nil, ErrStopped
	default:
	}
	select {
	case p.queue <- t:
		return t.result, nil
	case <-p.stopChan:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool[R]) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			p.logger.Debug("worker shutting down", zap.Int("worker", id))
			return
		case t := <-p.queue:
			p.logger.Debug("processing job",
				zap.Int("worker", id),
				zap.String("session_id", t.job.SessionID),
				zap.Uint64("seq", t.job.Seq),
			)
			// Detached from the submitter: an abandoned HTTP request must not
			// cancel the agent call.
			t.result <- p.process(context.Background(), t.job)
		}
	}
}
