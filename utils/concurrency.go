package utils

import (
	"sync"
	"time"
)

// WorkerPool runs jobs on a bounded number of goroutines with an optional
// minimum interval between job starts. The first job error is kept and
// returned by Wait; jobs submitted after a failure are skipped.
type WorkerPool struct {
	maxWorkers  int
	rateLimitMs int
	semaphore   chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastRequest time.Time

	errOnce sync.Once
	err     error
	failed  chan struct{}
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
// A maxWorkers below 1 is treated as 1.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers:  maxWorkers,
		rateLimitMs: rateLimitMs,
		semaphore:   make(chan struct{}, maxWorkers),
		lastRequest: time.Now().Add(-time.Duration(rateLimitMs) * time.Millisecond),
		failed:      make(chan struct{}),
	}
}

// Submit enqueues a job for execution in the pool. It blocks while all
// workers are busy.
func (wp *WorkerPool) Submit(job func() error) {
	select {
	case <-wp.failed:
		return
	case wp.semaphore <- struct{}{}:
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		select {
		case <-wp.failed:
			return
		default:
		}

		wp.enforceRateLimit()
		if err := job(); err != nil {
			wp.errOnce.Do(func() {
				wp.err = err
				close(wp.failed)
			})
		}
	}()
}

// Wait blocks until all submitted jobs have completed and returns the
// first error reported by a job, if any.
func (wp *WorkerPool) Wait() error {
	wp.wg.Wait()
	return wp.err
}

func (wp *WorkerPool) enforceRateLimit() {
	if wp.rateLimitMs <= 0 {
		return
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	elapsed := time.Since(wp.lastRequest)
	if elapsed < minInterval {
		time.Sleep(minInterval - elapsed)
	}
	wp.lastRequest = time.Now()
}
