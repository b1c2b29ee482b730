// Package workerpool implements a fixed-size, core-pinned worker pool
// backed by a single shared MPMC task queue. Submission retries briefly
// against queue-full before falling back to running the task inline on the
// submitting goroutine, which is the pool's backpressure policy rather than
// an error condition.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/reactor-httpd/core/queue"
)

const (
	queueCapacity = 2048
	submitRetries = 100
	yieldRetries  = 10
)

// Task is a unit of work executed by a pool worker.
type Task func()

// Pool is a bounded worker pool pinned one-goroutine-per-core.
type Pool struct {
	q       *queue.Ring[Task]
	stop    atomic.Bool
	wg      sync.WaitGroup
	workers int
}

// New starts a Pool with the given number of workers. workers <= 0 means
// one worker per logical CPU.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &Pool{
		q:       queue.NewRing[Task](queueCapacity),
		workers: workers,
	}

	cpus := runtime.NumCPU()
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.runWorker(i, cpus)
	}
	return p
}

func (p *Pool) runWorker(id, cpus int) {
	defer p.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	pinToCore(id % cpus)

	for !p.stop.Load() {
		if task, ok := p.q.TryDequeue(); ok {
			task()
		} else {
			runtime.Gosched()
		}
	}
	// Drain whatever remains so no submitted task is silently dropped on
	// shutdown.
	for {
		task, ok := p.q.TryDequeue()
		if !ok {
			return
		}
		task()
	}
}

// Submit enqueues fn for execution by a worker. It retries briefly against
// a full queue (yielding, then sleeping a microsecond at a time) before
// running fn synchronously on the caller as a last resort, so Submit never
// blocks indefinitely and never drops work.
func (p *Pool) Submit(fn Task) {
	for attempt := 0; attempt < submitRetries; attempt++ {
		if p.q.TryEnqueue(fn) {
			return
		}
		if attempt < yieldRetries {
			runtime.Gosched()
		} else {
			time.Sleep(time.Microsecond)
		}
	}
	fn()
}

// Len reports the approximate number of queued (not yet started) tasks.
func (p *Pool) Len() int {
	return p.q.Len()
}

// Workers reports the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Close signals workers to stop accepting new work once the queue drains
// and waits for all of them to exit.
func (p *Pool) Close() {
	p.stop.Store(true)
	p.wg.Wait()
}
