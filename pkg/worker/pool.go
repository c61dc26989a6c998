package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Task processes one submitted item.
type Task[T any, R any] func(ctx context.Context, item T) R

// Pool is a generic worker pool that runs one task function over every
// submitted item with a fixed number of workers.
type Pool[T any, R any] struct {
	workerCount int
	poolName    string // For logging
	task        Task[T, R]

	jobChan    chan T
	resultChan chan R
	closeOnce  sync.Once
}

// NewPool creates a new generic worker pool. workerCount below one is
// raised to one.
func NewPool[T any, R any](workerCount int, poolName string, bufferSize int, task Task[T, R]) *Pool[T, R] {
	if workerCount < 1 {
		workerCount = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Pool[T, R]{
		workerCount: workerCount,
		poolName:    poolName,
		task:        task,
		jobChan:     make(chan T, bufferSize),
		resultChan:  make(chan R, bufferSize),
	}
}

// Start launches the workers. Results is closed once every worker has
// returned, either because Close was called and the queue drained or
// because ctx was cancelled.
func (pool *Pool[T, R]) Start(ctx context.Context) {
	slog.Debug("Starting worker pool", "component", pool.poolName, "worker_count", pool.workerCount)

	var wg sync.WaitGroup
	for i := 0; i < pool.workerCount; i++ {
		wg.Add(1)
		go pool.worker(ctx, i, &wg)
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(pool.resultChan)
		slog.Debug("All workers stopped", "component", pool.poolName)
	}()
}

// Submit queues an item, blocking while the queue is full.
func (pool *Pool[T, R]) Submit(ctx context.Context, item T) error {
	select {
	case pool.jobChan <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work. Queued items are still processed.
func (pool *Pool[T, R]) Close() {
	pool.closeOnce.Do(func() { close(pool.jobChan) })
}

// Results returns the channel for receiving results
func (pool *Pool[T, R]) Results() <-chan R {
	return pool.resultChan
}

// worker processes jobs until the queue is closed or ctx is done
func (pool *Pool[T, R]) worker(ctx context.Context, id int, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Worker stopping", "component", pool.poolName, "worker_id", id, "reason", ctx.Err())
			return

		case item, ok := <-pool.jobChan:
			if !ok {
				return
			}

			result := pool.task(ctx, item)
			select {
			case pool.resultChan <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Map runs task over items on a temporary pool and returns the results in
// completion order.
func Map[T any, R any](ctx context.Context, workerCount int, poolName string, items []T, task Task[T, R]) ([]R, error) {
	pool := NewPool(workerCount, poolName, len(items), task)
	pool.Start(ctx)

	go func() {
		defer pool.Close()
		for _, item := range items {
			if err := pool.Submit(ctx, item); err != nil {
				return
			}
		}
	}()

	results := make([]R, 0, len(items))
	for result := range pool.Results() {
		results = append(results, result)
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
