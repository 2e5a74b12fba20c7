package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

// Job is one relevant change waiting to be sent to the integrations.
type Job struct {
	Decision domain.AutomationDecision
	User     *domain.User
}

// Notifier runs a job. automation.Helper satisfies it.
type Notifier interface {
	Notify(ctx context.Context, decision domain.AutomationDecision, user *domain.User) error
}

type PoolOptions struct {
	NumWorkers int
	JobTimeout time.Duration
}

// Pool runs notifications on a fixed number of goroutines, detached from the
// request that submitted them.
type Pool struct {
	numWorkers int
	jobTimeout time.Duration
	jobs       chan Job
	notifier   Notifier
	logger     *slog.Logger
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(opts PoolOptions, notifier Notifier, logger *slog.Logger) *Pool {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = time.Minute
	}
	return &Pool{
		numWorkers: opts.NumWorkers,
		jobTimeout: opts.JobTimeout,
		jobs:       make(chan Job, opts.NumWorkers*2),
		notifier:   notifier,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They drain the jobs channel until
// Stop closes it.
func (p *Pool) Start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit queues a job, blocking until there is room or ctx is done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new jobs, finishes the queued ones and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	start := time.Now()
	err := p.notifier.Notify(ctx, job.Decision, job.User)
	if err != nil {
		p.logger.Error("automation job failed",
			"worker_id", id,
			"kind", job.Decision.Kind,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	p.logger.Debug("automation job done",
		"worker_id", id,
		"kind", job.Decision.Kind,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
