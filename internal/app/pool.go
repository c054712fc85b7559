package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrPoolStopped is returned by Do once Stop has been called.
var ErrPoolStopped = errors.New("worker pool is shutting down")

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context)
	done chan struct{}
	ran  bool
}

// Pool runs scrape tasks on a fixed number of workers. Submitting blocks
// until a worker is free, so at most numWorkers tasks run at once.
type Pool struct {
	numWorkers int
	jobs       chan *task
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	log        zerolog.Logger
}

// NewPool creates a pool with numWorkers workers (at least one).
func NewPool(numWorkers int, log zerolog.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan *task),
		ctx:        ctx,
		cancel:     cancel,
		log:        log,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.log.Info().Int("num_workers", p.numWorkers).Msg("starting worker pool")
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop refuses new tasks and waits for running ones to return.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	p.log.Info().Msg("worker pool stopped")
}

// Do runs fn on a worker and waits for it to return. fn receives ctx, so
// cancelling ctx both abandons a task still waiting for a worker and
// interrupts a running one.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context)) error {
	t := &task{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case p.jobs <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}

	<-t.done
	if !t.ran {
		return ctx.Err()
	}
	return nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.log.Debug().Int("worker_id", id).Msg("worker started")

	for {
		select {
		case <-p.ctx.Done():
			p.log.Debug().Int("worker_id", id).Msg("worker stopping")
			return
		case t := <-p.jobs:
			if t.ctx.Err() == nil {
				t.fn(t.ctx)
				t.ran = true
			}
			close(t.done)
		}
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.numWorkers
}
