// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package propagation

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("propagation: pool is closed")

// Pool is a worker pool whose submission boundary propagates tracing
// context: every task captures a Snapshot of the submitter's context and
// runs wrapped in it on a worker. Code that never touches tracing sees an
// ordinary pool. Install one per process, next to the tracer provider.
type Pool struct {
	tasks  chan job
	group  *errgroup.Group
	logger *slog.Logger

	// mu orders Submit's send against Shutdown's close of the task channel.
	mu     sync.RWMutex
	closed atomic.Bool

	// invalidOnce limits the invalid-snapshot warning to one line per pool;
	// a hot loop submitting untraced work should not flood the log.
	invalidOnce sync.Once
}

type job struct {
	run  func(context.Context)
	snap Snapshot
}

// PoolOption configures a Pool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	workers int
	queue   int
	logger  *slog.Logger
}

// WithWorkers sets the number of worker goroutines. Defaults to GOMAXPROCS.
func WithWorkers(n int) PoolOption {
	return func(c *poolConfig) { c.workers = n }
}

// WithQueueDepth sets the submission buffer size. Defaults to 2x workers.
func WithQueueDepth(n int) PoolOption {
	return func(c *poolConfig) { c.queue = n }
}

// WithLogger sets the logger for swallowed task panics and context
// propagation failures.
func WithLogger(l *slog.Logger) PoolOption {
	return func(c *poolConfig) { c.logger = l }
}

// NewPool starts the workers and returns the pool.
func NewPool(opts ...PoolOption) *Pool {
	cfg := poolConfig{workers: runtime.GOMAXPROCS(0), logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	if cfg.queue <= 0 {
		cfg.queue = cfg.workers * 2
	}

	p := &Pool{
		tasks:  make(chan job, cfg.queue),
		group:  &errgroup.Group{},
		logger: cfg.logger,
	}
	for range cfg.workers {
		p.group.Go(p.worker)
	}
	return p
}

// Submit queues task for execution with the tracing context active in ctx.
// It blocks while the queue is full and fails once ctx is cancelled or the
// pool has shut down. The snapshot is taken here, at the submission
// boundary, not when a worker eventually picks the task up.
func (p *Pool) Submit(ctx context.Context, task func(context.Context)) error {
	if task == nil {
		return errors.New("propagation: nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}

	snap := Capture(ctx)
	if !snap.Valid() {
		p.invalidOnce.Do(func() {
			p.logger.Warn("task submitted without an active span; child spans will be parentless")
		})
	}

	// With queue space free the select below could pick either branch; an
	// already-cancelled submission must not enqueue.
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.tasks <- job{run: task, snap: snap}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to drain, or for
// ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}
	p.mu.Lock()
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() error {
	for j := range p.tasks {
		p.runTask(j)
	}
	return nil
}

// runTask executes one job under its snapshot. A panicking task must not
// take the worker down with it, so the recover lives here, per task.
func (p *Pool) runTask(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool task panicked", slog.Any("panic", r))
		}
	}()
	j.snap.Wrap(j.run)(context.Background())
}
