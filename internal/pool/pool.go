// Package pool runs independent tasks on a fixed-size set of workers.
package pool

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dmriqc/internal/errors"
)

// Task is an immutable work item. TaskID names it in logs and errors.
type Task interface {
	TaskID() string
}

// Func processes one task. It must not share mutable state with other calls.
type Func[T Task, R any] func(ctx context.Context, task T) (R, error)

// Map runs fn over every task on at most workers goroutines and returns the
// results in completion order. Workers below one run sequentially. The first
// failure cancels the remaining tasks and is returned as WORKER_FAILED; no
// partial results are returned.
func Map[T Task, R any](ctx context.Context, workers int, tasks []T, fn Func[T, R]) ([]R, error) {
	if workers < 1 {
		workers = 1
	}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	results := make([]R, 0, len(tasks))

	for _, task := range tasks {
		task := task
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, task)
			if err != nil {
				return errors.WorkerFailed(task.TaskID(), err)
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if !errors.IsAppError(err) {
			err = errors.WorkerFailed("pool", err)
		}
		return nil, err
	}
	log.Printf("[Pool] %d tasks on %d workers in %s", len(tasks), workers, time.Since(start).Round(time.Millisecond))
	return results, nil
}
