package worker

import (
	"context"
	"log/slog"
	"sync"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Job is one unit of work. ctx is cancelled only when the pool shuts down.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	jobs    chan Job
	workers int
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool with the given worker count and queue capacity.
// Jobs start running once Run is called.
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Submit queues job without blocking. It fails with errpkg.ErrQueueFull when
// the queue is at capacity and errpkg.ErrShuttingDown after shutdown began.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errpkg.ErrShuttingDown
	}
	select {
	case p.jobs <- job:
		metrics.QueueDepth.Set(float64(p.Pending()))
		return nil
	default:
		return errpkg.ErrQueueFull
	}
}

// Pending returns the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	return len(p.jobs)
}

// Run starts the workers and blocks until ctx is done. It then stops
// accepting jobs and returns after every queued job has been handed to a
// worker and finished.
func (p *Pool) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	for i := 1; i <= p.workers; i++ {
		workerID := i
		g.Go(func() error {
			p.loop(ctx, workerID)
			return nil
		})
	}
	p.logger.Info("worker pool started", "workers", p.workers, "queue_size", cap(p.jobs))

	<-ctx.Done()

	p.mu.Lock()
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.logger.Info("worker pool draining", "pending", p.Pending())
	err := g.Wait()
	p.logger.Info("worker pool stopped")
	return err
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	for job := range p.jobs {
		metrics.QueueDepth.Set(float64(p.Pending()))
		p.runJob(ctx, workerID, job)
	}
}

func (p *Pool) runJob(ctx context.Context, workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", "worker_id", workerID, "panic", r)
		}
	}()
	job(ctx)
}
