package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_ExecutesAllTasks(t *testing.T) {
	t.Parallel()

	var count atomic.Int64
	tasks := make([]Task, 25)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) {
			count.Add(1)
		}
	}

	if err := Run(context.Background(), 4, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := count.Load(); got != 25 {
		t.Fatalf("expected 25 executed tasks, got %d", got)
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	const workers = 3

	var mu sync.Mutex
	inFlight := 0
	peak := 0

	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
		}
	}

	if err := Run(context.Background(), workers, tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > workers {
		t.Fatalf("observed %d concurrent tasks, want <= %d", peak, workers)
	}
}

func TestRun_CancellationAbandonsPendingTasks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	var started atomic.Int64
	release := make(chan struct{})

	tasks := make([]Task, 50)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) {
			started.Add(1)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, 2, tasks)
	}()

	// Let the two workers pick up tasks, then cancel and unblock them.
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	err := <-done
	if err == nil {
		t.Fatalf("expected context error after cancellation")
	}
	if got := started.Load(); got >= 50 {
		t.Fatalf("expected pending tasks to be abandoned, but all %d started", got)
	}
}

func TestRun_NoTasks(t *testing.T) {
	t.Parallel()

	if err := Run(context.Background(), 4, nil); err != nil {
		t.Fatalf("unexpected error for empty task list: %v", err)
	}
}
