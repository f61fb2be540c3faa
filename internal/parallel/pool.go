// Package parallel runs resource loads on a bounded set of goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a fixed set of goroutines pulling work from one shared queue.
//
// Any idle worker picks up the next item, so a slow load never holds back
// the items queued after it while other workers are free.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queue   chan func()

	// done signals workers to stop.
	done chan struct{}
	wg   sync.WaitGroup

	running atomic.Bool
	pending atomic.Int64
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Buffer of a few items per worker hides submit latency.
	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &WorkerPool{
		workers: workers,
		queue:   make(chan func(), queueSize),
		done:    make(chan struct{}),
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			p.drain()
			return
		case work := <-p.queue:
			p.run(work)
		}
	}
}

func (p *WorkerPool) run(work func()) {
	if work == nil {
		return
	}
	defer p.pending.Add(-1)
	work()
}

// drain executes the work still queued at shutdown.
func (p *WorkerPool) drain() {
	for {
		select {
		case work := <-p.queue:
			p.run(work)
		default:
			return
		}
	}
}

// Submit queues fn. It blocks while the queue is full and reports false
// when the pool is closed, in which case fn will never run.
func (p *WorkerPool) Submit(fn func()) bool {
	if fn == nil || !p.running.Load() {
		return false
	}

	p.pending.Add(1)
	select {
	case <-p.done:
		p.pending.Add(-1)
		return false
	default:
	}
	select {
	case p.queue <- fn:
		return true
	case <-p.done:
		p.pending.Add(-1)
		return false
	}
}

// Close stops accepting work, runs what is already queued and stops the
// workers. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// Pending returns the number of submitted items that have not finished.
func (p *WorkerPool) Pending() int {
	return int(p.pending.Load())
}
