// Package schedule provides the per-tenant serialized job runner used for
// platform-rate-limited channel operations. At most one task per tenant is
// in flight at any time; tenants proceed independently and in parallel.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a single unit of platform-affecting work.
type Task func(ctx context.Context) error

type job struct {
	task Task
	done chan error
}

// tenantQueue is owned exclusively by its worker goroutine once spawned;
// the scheduler mutex only guards enqueue/dequeue and the executing flag.
type tenantQueue struct {
	jobs      []*job
	executing bool
}

// Scheduler runs tasks strictly FIFO per tenant with a fixed spacing delay
// between consecutive tasks for the same tenant. A tenant's worker is torn
// down when its queue drains; the next enqueue spawns a fresh one.
type Scheduler struct {
	mu      sync.Mutex
	queues  map[string]*tenantQueue
	spacing time.Duration
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler with the given inter-task spacing.
func New(spacing time.Duration, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		queues:  make(map[string]*tenantQueue),
		spacing: spacing,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule appends task to the tenant's queue and blocks until the task
// ran, returning the task's own error. When ctx expires first the waiter
// unblocks with ctx.Err() but the task itself still executes in order.
// Task failures never affect the tenant's subsequent tasks; retry is the
// caller's responsibility.
func (s *Scheduler) Schedule(ctx context.Context, tenantKey string, task Task) error {
	j := &job{task: task, done: make(chan error, 1)}

	s.mu.Lock()
	q, ok := s.queues[tenantKey]
	if !ok {
		q = &tenantQueue{}
		s.queues[tenantKey] = q
	}
	q.jobs = append(q.jobs, j)
	spawn := !ok
	depth := len(q.jobs)
	s.mu.Unlock()

	s.logger.Debug("job queued",
		zap.String("tenant_id", tenantKey),
		zap.Int("queue_size", depth))

	if spawn {
		go s.run(tenantKey)
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingCount reports the number of tasks queued for the tenant,
// including one currently executing. Never blocks on task completion.
func (s *Scheduler) PendingCount(tenantKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[tenantKey]
	if !ok {
		return 0
	}
	n := len(q.jobs)
	if q.executing {
		n++
	}
	return n
}

// Drain blocks until every tenant queue is empty and nothing is executing,
// or until ctx expires. Best-effort shutdown barrier only: work enqueued
// while draining is waited for, so a pathological producer can hold the
// drain open until the caller's deadline.
func (s *Scheduler) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		empty := len(s.queues) == 0
		s.mu.Unlock()
		if empty {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop cancels the context handed to running tasks. Pending waiters still
// receive their task results; call Drain first during graceful shutdown.
func (s *Scheduler) Stop() {
	s.cancel()
}

// run is the worker loop for one tenant. It exits, removing the queue,
// once no jobs remain after the post-task spacing delay.
func (s *Scheduler) run(tenantKey string) {
	for {
		s.mu.Lock()
		q := s.queues[tenantKey]
		if len(q.jobs) == 0 {
			delete(s.queues, tenantKey)
			s.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.executing = true
		s.mu.Unlock()

		err := s.execute(tenantKey, j)
		j.done <- err

		s.mu.Lock()
		q.executing = false
		s.mu.Unlock()

		if s.spacing > 0 {
			time.Sleep(s.spacing)
		}
	}
}

// execute runs one task, converting panics into errors so a misbehaving
// task can never take down the worker or sibling tenants.
func (s *Scheduler) execute(tenantKey string, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduled task panicked: %v", r)
			s.logger.Error("scheduled task panicked",
				zap.String("tenant_id", tenantKey),
				zap.Any("panic", r))
		}
	}()

	if err = j.task(s.ctx); err != nil {
		s.logger.Error("scheduled task failed",
			zap.String("tenant_id", tenantKey),
			zap.Error(err))
	}
	return err
}
