package lsp

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRequestTimeout bounds how long a feature request may run before the
// session answers with a null result.
const DefaultRequestTimeout = 2 * time.Second

// Scheduler runs request handlers with a deadline and tracks in-flight
// requests by id so $/cancelRequest can mark them. Cancellation is advisory:
// a cancelled handler still runs to completion in the background, but the
// scheduler records the mark so handlers that poll Cancelled can bail early.
type Scheduler struct {
	timeout time.Duration
	log     *slog.Logger

	mu    sync.Mutex
	tasks map[int64]*task
}

type task struct {
	cancelled bool
	done      chan struct{}
}

// NewScheduler creates a scheduler with the given per-request timeout.
// A non-positive timeout falls back to DefaultRequestTimeout.
func NewScheduler(timeout time.Duration, log *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Scheduler{
		timeout: timeout,
		log:     log,
		tasks:   make(map[int64]*task),
	}
}

// Execute runs fn under the scheduler's deadline. On timeout it returns
// ErrTimeout immediately while fn finishes in the background; the task entry
// is pruned when fn returns either way.
func (s *Scheduler) Execute(ctx context.Context, id int64, fn func(ctx context.Context) (any, error)) (any, error) {
	t := &task{done: make(chan struct{})}
	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)

	type outcome struct {
		result any
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			cancel()
			close(t.done)
			s.mu.Lock()
			delete(s.tasks, id)
			s.mu.Unlock()
		}()
		result, err := fn(ctx)
		ch <- outcome{result, err}
	}()

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			s.log.Warn("request timed out", "id", id, "timeout", s.timeout)
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// Cancel marks the task for the given request id as cancelled. It returns
// false if no such task is in flight.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.cancelled = true
	return true
}

// Cancelled reports whether the task for the given request id has been
// marked cancelled.
func (s *Scheduler) Cancelled(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return ok && t.cancelled
}

// Pending returns the number of in-flight tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
