package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ledger_worker_queue_depth",
	Help: "Jobs waiting for a ledger worker",
})

// Job is one ledger call executed on a pool worker. The submitter keeps its
// synchronous contract by waiting on the job.
type Job struct {
	ctx       context.Context
	requestID string
	name      string
	run       func(ctx context.Context) error
	done      chan error
}

func NewJob(ctx context.Context, requestID, name string, run func(ctx context.Context) error) *Job {
	return &Job{
		ctx:       ctx,
		requestID: requestID,
		name:      name,
		run:       run,
		done:      make(chan error, 1),
	}
}

// Wait blocks until the job ran or ctx ends. The worker never blocks on
// delivering the result, so abandoning a job leaks nothing.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Pool struct {
	jobs   chan *Job
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewPool(bufferSize int, logger *slog.Logger) *Pool {
	return &Pool{
		jobs:   make(chan *Job, bufferSize),
		logger: logger,
	}
}

func (p *Pool) Start(workerCount int) {
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		queueDepth.Dec()

		err := job.ctx.Err()
		if err == nil {
			err = job.run(job.ctx)
		}
		if err != nil {
			p.logger.Warn("ledger job failed",
				"request_id", job.requestID,
				"job", job.name,
				"error", err,
			)
		}
		job.done <- err
	}
}

// Submit enqueues without blocking. false means the queue is full and the
// caller should shed the request.
func (p *Pool) Submit(job *Job) bool {
	select {
	case p.jobs <- job:
		queueDepth.Inc()
		return true
	default:
		return false
	}
}

func (p *Pool) Shutdown() {
	close(p.jobs)
	p.wg.Wait()
}
