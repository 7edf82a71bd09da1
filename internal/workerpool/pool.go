// Package workerpool provides the one bounded worker pool used for every
// fan-out in the pipeline: fetch/decode resolution and semantic judgment
// sub-batches both run through it.
package workerpool

import (
	"context"
	"sync"
)

// Task is one unit of independent work. Tasks report their outcome
// through whatever state they close over; the pool itself never
// inspects results.
type Task func(ctx context.Context)

// Run executes tasks on at most workers goroutines and blocks until
// every started task has finished (join semantics). When ctx is
// cancelled, tasks that have not started yet are abandoned and Run
// returns ctx.Err(); tasks already running are left to observe ctx
// themselves.
func Run(ctx context.Context, workers int, tasks []Task) error {
	if len(tasks) == 0 {
		return ctx.Err()
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	queue := make(chan Task)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for task := range queue {
				task(ctx)
			}
		}()
	}

feed:
	for _, task := range tasks {
		select {
		case queue <- task:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)

	wg.Wait()
	return ctx.Err()
}
