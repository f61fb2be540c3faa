package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool Creation Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	if want := runtime.GOMAXPROCS(0); pool.Workers() != want {
		t.Errorf("Workers() = %d, want %d (GOMAXPROCS)", pool.Workers(), want)
	}
}

// =============================================================================
// Submit Tests
// =============================================================================

func TestWorkerPool_Submit(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	const numTasks = 20
	done := make(chan struct{})

	for range numTasks {
		if !pool.Submit(func() {
			if counter.Add(1) == numTasks {
				close(done)
			}
		}) {
			t.Fatal("Submit() = false on a running pool")
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Errorf("timeout waiting for submitted work, counter = %d", counter.Load())
	}
}

func TestWorkerPool_SubmitNil(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	if pool.Submit(nil) {
		t.Error("Submit(nil) = true, want false")
	}
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	ran := false
	if pool.Submit(func() { ran = true }) {
		t.Error("Submit() after Close = true, want false")
	}
	if ran {
		t.Error("work ran after Close")
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("Pool should not be running after close")
	}
}

func TestWorkerPool_CloseRunsQueuedWork(t *testing.T) {
	pool := NewWorkerPool(1)

	block := make(chan struct{})
	var counter atomic.Int64

	pool.Submit(func() { <-block })
	for range 5 {
		pool.Submit(func() { counter.Add(1) })
	}

	close(block)
	pool.Close()

	if counter.Load() != 5 {
		t.Errorf("counter = %d, want 5 (queued work must drain on close)", counter.Load())
	}
	if pool.Pending() != 0 {
		t.Errorf("Pending() = %d after Close, want 0", pool.Pending())
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestWorkerPool_ConcurrentSubmit(t *testing.T) {
	pool := NewWorkerPool(4)

	var counter atomic.Int64
	var wg sync.WaitGroup
	const goroutines = 16
	const perGoroutine = 50

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				pool.Submit(func() { counter.Add(1) })
			}
		}()
	}
	wg.Wait()
	pool.Close()

	if want := int64(goroutines * perGoroutine); counter.Load() != want {
		t.Errorf("counter = %d, want %d", counter.Load(), want)
	}
}

func TestWorkerPool_SlowTaskDoesNotBlockOthers(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	// Hold one worker; the rest must keep draining the queue.
	block := make(chan struct{})
	pool.Submit(func() { <-block })

	var counter atomic.Int64
	done := make(chan struct{})
	const numTasks = 40
	for range numTasks {
		pool.Submit(func() {
			if counter.Add(1) == numTasks {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Errorf("work stuck behind a blocked worker, counter = %d", counter.Load())
	}
	close(block)
}
