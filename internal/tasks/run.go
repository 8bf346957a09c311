package tasks

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrErrorsLimitExceeded      = errors.New("errors limit exceeded")
	ErrIncorrectGoroutinesCount = errors.New("incorrect number of goroutines")
)

type Task func(ctx context.Context) error

// Run executes tasks in n goroutines and stops once m of them have failed.
// With m <= 0 every task runs regardless of failures. Tasks that have not
// started when ctx is done are skipped and ctx.Err() is returned.
func Run(ctx context.Context, tasks []Task, n, m int) error {
	if n <= 0 {
		return ErrIncorrectGoroutinesCount
	}
	if len(tasks) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasksCh := make(chan Task)
	results := make(chan error)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasksCh {
				if ctx.Err() != nil {
					return
				}
				select {
				case results <- task(ctx):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
	feed:
		for _, task := range tasks {
			select {
			case tasksCh <- task:
			case <-ctx.Done():
				break feed
			}
		}
		close(tasksCh)
		wg.Wait()
		close(results)
	}()

	var errCount int
	var limited bool
	for result := range results {
		if result == nil || limited {
			continue
		}
		errCount++
		if m > 0 && errCount == m {
			limited = true
			cancel()
		}
	}

	if limited {
		return ErrErrorsLimitExceeded
	}
	return ctx.Err()
}
