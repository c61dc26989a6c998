package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"pluginsync/pkg/diffing"
	"pluginsync/pkg/scancycle"
)

// Action is one unit of scheduled work, normally a scan cycle.
type Action func(ctx context.Context) error

// Runner serializes an Action. A trigger that arrives while the action is
// running is remembered and causes exactly one more run; further triggers
// during that window are folded into it.
type Runner struct {
	action Action

	mu       sync.Mutex
	idle     *sync.Cond
	running  bool
	pending  bool
	inflight int
}

func NewRunner(action Action) *Runner {
	r := &Runner{action: action}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// Trigger runs the action on the calling goroutine, looping while re-runs
// were requested. It returns false without running when another goroutine
// already owns the runner; that goroutine picks up the request.
func (r *Runner) Trigger(ctx context.Context) bool {
	r.mu.Lock()
	if r.running {
		r.pending = true
		r.mu.Unlock()
		return false
	}
	r.running = true
	r.mu.Unlock()

	for {
		r.run(ctx)

		r.mu.Lock()
		if !r.pending || ctx.Err() != nil {
			r.running = false
			r.pending = false
			r.mu.Unlock()
			return true
		}
		r.pending = false
		r.mu.Unlock()
	}
}

// Go triggers the action on a new goroutine tracked by Wait. Nothing is
// started once ctx is done.
func (r *Runner) Go(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	r.mu.Lock()
	r.inflight++
	r.mu.Unlock()

	go func() {
		defer r.release()
		r.Trigger(ctx)
	}()
}

func (r *Runner) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight--
	if r.inflight == 0 {
		r.idle.Broadcast()
	}
}

// Wait blocks until every goroutine started with Go has returned. It is
// safe to call concurrently with Go.
func (r *Runner) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.inflight > 0 {
		r.idle.Wait()
	}
}

// Running reports whether an action is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) run(ctx context.Context) {
	if err := r.action(ctx); err != nil {
		slog.Error("Scheduled action failed", "component", "Scheduler", "error", err)
	}
}

// CycleAction adapts a scan cycle to an Action that logs the text diff
// summary after every pass.
func CycleAction(cycle *scancycle.Cycle) Action {
	return func(ctx context.Context) error {
		result, err := cycle.Perform(ctx)
		if errors.Is(err, scancycle.ErrNoReports) {
			slog.Info(diffing.NoReportsMessage, "component", "Scheduler")
			return nil
		}
		if err != nil {
			return err
		}
		slog.Info("Scan finished",
			"component", "Scheduler",
			"run_id", result.RunID,
			"updates", result.UpdateCount,
			"duration", result.Duration,
			"summary", diffing.FormatDiffSummary(result.Evaluation.Diff),
		)
		return nil
	}
}
