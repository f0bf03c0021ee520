// Package tasks runs named jobs asynchronously on a fixed set of workers.
package tasks

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Runner is the fire-and-forget execution interface consumed by the file
// manager.
type Runner interface {
	Execute(name string, job func())
}

type PoolParams struct {
	// Workers defaults to the number of CPUs.
	Workers int
	Logger  zerolog.Logger
}

type task struct {
	name string
	job  func()
}

// Pool queues jobs without bound, so Execute never blocks, and runs them in
// FIFO order on its workers. A panicking job is logged and does not take the
// worker down.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []task
	running int
	closed  bool

	group  *errgroup.Group
	logger zerolog.Logger
}

func NewPool(params PoolParams) *Pool {
	workers := params.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &Pool{
		group:  &errgroup.Group{},
		logger: params.Logger,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := range workers {
		p.group.Go(func() error {
			p.work(i)
			return nil
		})
	}

	p.logger.Debug().Int("workers", workers).Msg("task pool started")
	return p
}

// Execute queues job. Jobs submitted after Close are dropped.
func (p *Pool) Execute(name string, job func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn().Str("task", name).Msg("task pool closed, dropping task")
		return
	}

	p.queue = append(p.queue, task{name: name, job: job})
	p.cond.Signal()
}

// Pending returns the number of queued and running jobs.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) + p.running
}

// Wait blocks until no job is queued or running, or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops accepting jobs, lets the workers drain the queue and waits for
// them to exit.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	return p.group.Wait()
}

func (p *Pool) work(id int) {
	logger := p.logger.With().Int("worker", id).Logger()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue[0] = task{}
		p.queue = p.queue[1:]
		p.running++
		p.mu.Unlock()

		p.run(t, logger)

		p.mu.Lock()
		p.running--
		p.mu.Unlock()
	}
}

func (p *Pool) run(t task, logger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("task", t.name).Err(fmt.Errorf("panic: %v", r)).Msg("task panicked")
		}
	}()

	start := time.Now()
	t.job()
	logger.Trace().Str("task", t.name).Dur("elapsed", time.Since(start)).Msg("task done")
}
