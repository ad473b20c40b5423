// Package jobs runs deferred background work submitted by request
// handlers. Callers never wait on a job's outcome; completion and
// failure are observable through logs, metrics and Drain, which lets
// shutdown and tests wait for quiescence deterministically.
package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/podworks/pod-access-service/internal/observability"
)

// Scheduler accepts a deferred job and executes it after the current
// request completes. Jobs submitted for the same key run in program
// order of submission; no ordering is guaranteed across keys.
type Scheduler interface {
	Submit(name, key string, run func(ctx context.Context) error)
}

type job struct {
	name string
	key  string
	run  func(ctx context.Context) error
}

type Runner struct {
	logger  *slog.Logger
	guard   *Guard
	queue   chan job
	pending sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	closed bool
}

type RunnerOption func(*Runner)

// WithGuard suppresses duplicate concurrent submissions sharing a
// name+key. The guard is advisory: job idempotency remains the
// correctness backstop.
func WithGuard(g *Guard) RunnerOption {
	return func(r *Runner) { r.guard = g }
}

func WithQueueSize(n int) RunnerOption {
	return func(r *Runner) { r.queue = make(chan job, n) }
}

func NewRunner(logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: logger,
		queue:  make(chan job, 64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the worker. ctx bounds every job's execution.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	go func() {
		for j := range r.queue {
			r.execute(j)
		}
	}()
}

func (r *Runner) Submit(name, key string, run func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("job rejected, runner shut down", "job", name, "key", key)
		return
	}
	r.pending.Add(1)
	r.mu.Unlock()

	j := job{name: name, key: key, run: run}
	select {
	case r.queue <- j:
	default:
		// Queue full; spawn rather than block the request path.
		go r.execute(j)
	}
}

func (r *Runner) execute(j job) {
	defer r.pending.Done()

	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if r.guard != nil && j.key != "" {
		acquired, err := r.guard.Begin(ctx, j.name, j.key)
		if err != nil {
			r.logger.Warn("job guard unavailable, running anyway", "job", j.name, "key", j.key, "error", err)
		} else if !acquired {
			r.logger.Info("duplicate job suppressed", "job", j.name, "key", j.key)
			observability.RecordJobOutcome(j.name, "suppressed")
			return
		} else {
			defer func() {
				if err := r.guard.Release(context.WithoutCancel(ctx), j.name, j.key); err != nil {
					r.logger.Warn("job guard release failed", "job", j.name, "key", j.key, "error", err)
				}
			}()
		}
	}

	if err := j.run(ctx); err != nil {
		r.logger.Error("job failed", "job", j.name, "key", j.key, "error", err)
		observability.RecordJobOutcome(j.name, "failed")
		return
	}
	observability.RecordJobOutcome(j.name, "completed")
}

// Drain blocks until every job submitted so far has finished.
func (r *Runner) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting work and waits for in-flight jobs.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	return r.Drain(ctx)
}
