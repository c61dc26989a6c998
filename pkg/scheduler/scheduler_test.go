package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pluginsync/pkg/config"
	"pluginsync/pkg/models"
	"pluginsync/pkg/scancycle"
	"pluginsync/pkg/store"
)

func countingAction(count *atomic.Int32) Action {
	return func(context.Context) error {
		count.Add(1)
		return nil
	}
}

func TestRunner_Trigger(t *testing.T) {
	var count atomic.Int32
	r := NewRunner(countingAction(&count))

	assert.True(t, r.Trigger(context.Background()))
	assert.True(t, r.Trigger(context.Background()))
	assert.Equal(t, int32(2), count.Load())
	assert.False(t, r.Running())
}

func TestRunner_CoalescesPendingTriggers(t *testing.T) {
	var count atomic.Int32
	release := make(chan struct{})
	r := NewRunner(func(context.Context) error {
		if count.Add(1) == 1 {
			<-release
		}
		return nil
	})

	done := make(chan bool)
	go func() { done <- r.Trigger(context.Background()) }()
	require.Eventually(t, r.Running, time.Second, time.Millisecond)

	for range 3 {
		assert.False(t, r.Trigger(context.Background()))
	}
	close(release)

	assert.True(t, <-done)
	assert.Equal(t, int32(2), count.Load())
	assert.False(t, r.Running())
}

func TestRunner_ActionError(t *testing.T) {
	r := NewRunner(func(context.Context) error { return errors.New("boom") })
	assert.True(t, r.Trigger(context.Background()))
	assert.False(t, r.Running())
}

func blockingAction(count *atomic.Int32, release <-chan struct{}) Action {
	return func(context.Context) error {
		<-release
		count.Add(1)
		return nil
	}
}

func TestRunner_WaitCoversGo(t *testing.T) {
	var count atomic.Int32
	release := make(chan struct{})
	r := NewRunner(blockingAction(&count, release))

	r.Go(context.Background())
	require.Eventually(t, r.Running, time.Second, time.Millisecond)

	waited := make(chan struct{})
	go func() {
		r.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while the action was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
	assert.Equal(t, int32(1), count.Load())
}

func TestRunner_GoAfterCancel(t *testing.T) {
	var count atomic.Int32
	r := NewRunner(countingAction(&count))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Go(ctx)
	r.Wait()
	assert.Equal(t, int32(0), count.Load())
}

func TestDebouncer(t *testing.T) {
	var count atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { count.Add(1) })

	for range 5 {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	assert.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	var count atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { count.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())
}

func runScheduler(t *testing.T, s *Scheduler) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func TestScheduler_StartupAndInterval(t *testing.T) {
	var count atomic.Int32
	s := NewScheduler(NewRunner(countingAction(&count)), t.TempDir(), 3600, 0)
	s.interval = 20 * time.Millisecond

	stop := runScheduler(t, s)
	assert.Eventually(t, func() bool { return count.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()
}

func TestScheduler_RunWaitsForRunnerGoroutines(t *testing.T) {
	var calls, finished atomic.Int32
	release := make(chan struct{})
	runner := NewRunner(func(context.Context) error {
		if calls.Add(1) > 1 {
			<-release
		}
		finished.Add(1)
		return nil
	})
	s := NewScheduler(runner, t.TempDir(), 3600, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return finished.Load() == 1 }, time.Second, time.Millisecond)

	// A run started outside the scheduler, as the HTTP API does.
	runner.Go(context.Background())
	require.Eventually(t, runner.Running, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a scan was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(2), finished.Load())
}

func TestScheduler_WatchTriggersDebouncedScan(t *testing.T) {
	var count atomic.Int32
	dir := t.TempDir()
	s := NewScheduler(NewRunner(countingAction(&count)), dir, 3600, 0)
	s.debounce = 20 * time.Millisecond

	stop := runScheduler(t, s)
	defer stop()
	require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Give the watcher time to register before touching the folder.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "New.aaxplugin"), 0o755))

	assert.Eventually(t, func() bool { return count.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_WatcherUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		watchPath string
		watcher   func() (*fsnotify.Watcher, error)
	}{
		{
			name:      "watcher cannot be created",
			watchPath: t.TempDir(),
			watcher:   func() (*fsnotify.Watcher, error) { return nil, errors.New("no inotify") },
		},
		{
			name:      "folder does not exist",
			watchPath: filepath.Join(t.TempDir(), "missing"),
			watcher:   fsnotify.NewWatcher,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var count atomic.Int32
			s := NewScheduler(NewRunner(countingAction(&count)), tt.watchPath, 3600, 0)
			s.interval = 20 * time.Millisecond
			s.newWatcher = tt.watcher

			stop := runScheduler(t, s)
			assert.Eventually(t, func() bool { return count.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
			stop()
		})
	}
}

func testCycle(t *testing.T, s store.Store) *scancycle.Cycle {
	cfg := config.Default("Studio")
	cfg.PluginsPath = t.TempDir()
	cfg.ReportsPath = t.TempDir()
	if s == nil {
		s = store.NewLocalStore(cfg.ReportsPath)
	}
	return scancycle.New(cfg, s)
}

// noReportsStore accepts writes but never returns reports.
type noReportsStore struct {
	store.Store
}

func (noReportsStore) LoadLatestReports(context.Context) (map[string]models.Report, error) {
	return map[string]models.Report{}, nil
}

func TestCycleAction(t *testing.T) {
	assert.NoError(t, CycleAction(testCycle(t, nil))(context.Background()))

	empty := noReportsStore{Store: store.NewLocalStore(t.TempDir())}
	assert.NoError(t, CycleAction(testCycle(t, empty))(context.Background()))
}
