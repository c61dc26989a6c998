// Package scheduler drives scan cycles for the daemon: once at start-up,
// on a fixed interval and shortly after the plugins folder changes.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Scheduler decides when the runner fires.
type Scheduler struct {
	runner    *Runner
	watchPath string
	interval  time.Duration
	debounce  time.Duration

	// newWatcher is replaced in tests.
	newWatcher func() (*fsnotify.Watcher, error)

	logger *slog.Logger
}

// NewScheduler creates a Scheduler. intervalSec and debounceSec come from
// scan_interval_seconds and debounce_seconds.
func NewScheduler(runner *Runner, watchPath string, intervalSec, debounceSec int) *Scheduler {
	return &Scheduler{
		runner:     runner,
		watchPath:  watchPath,
		interval:   time.Duration(intervalSec) * time.Second,
		debounce:   time.Duration(debounceSec) * time.Second,
		newWatcher: fsnotify.NewWatcher,
		logger:     slog.With("component", "Scheduler"),
	}
}

// Run blocks until ctx is cancelled. Before returning it waits for every
// run started through the runner's Go, including ones started elsewhere.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting", "interval", s.interval, "debounce", s.debounce, "watch_path", s.watchPath)

	defer s.runner.Wait()

	trigger := func(reason string) {
		s.logger.Debug("Triggering scan", "reason", reason)
		s.runner.Go(ctx)
	}
	trigger("startup")

	fire := make(chan struct{}, 1)
	debouncer := NewDebouncer(s.debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
	defer debouncer.Stop()

	var (
		events    <-chan fsnotify.Event
		watchErrs <-chan error
	)
	if watcher := s.watch(); watcher != nil {
		defer watcher.Close()
		events, watchErrs = watcher.Events, watcher.Errors
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Context cancelled, shutting down")
			return nil

		case <-ticker.C:
			trigger("interval")

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.logger.Debug("Plugins folder changed", "path", event.Name, "op", event.Op.String())
			debouncer.Trigger()

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.logger.Warn("Watcher error", "error", err)

		case <-fire:
			trigger("filesystem")
		}
	}
}

// watch returns nil when the folder cannot be watched, which leaves only
// the periodic trigger.
func (s *Scheduler) watch() *fsnotify.Watcher {
	watcher, err := s.newWatcher()
	if err != nil {
		s.logger.Warn("Watcher unavailable, using periodic scans only", "error", err)
		return nil
	}
	if err := watcher.Add(s.watchPath); err != nil {
		watcher.Close()
		s.logger.Warn("Watcher unavailable, using periodic scans only", "error", err)
		return nil
	}
	return watcher
}
