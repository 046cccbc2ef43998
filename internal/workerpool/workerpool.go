// Package workerpool provides the fixed-size goroutine pool used to
// run the LE-method distribution loop's outbound sends (spec §4.9)
// off the Main Executor, generalizing
// original_source/include/my_thread_pool.h's MyThreadPool and adopting
// gomlx-gomlx's internal/workerspool condition-variable style for the
// size-tracking bookkeeping.
package workerpool

import "sync"

// Pool runs submitted tasks on at most N goroutines at a time. A pool
// of size 0 runs every task inline on the submitting goroutine, which
// is how the server runs in its default (non-LE-method) configuration
// — there is no distribution loop to offload.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	size    int
	pending int // submitted but not yet finished, counted from Submit so Wait can't race a task still in flight to a worker
	tasks   chan func()
	wg      sync.WaitGroup
	closed  bool
}

// New creates a Pool with the given number of worker goroutines. size
// must be >= 0; size == 0 makes Submit run tasks synchronously.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)
	if size > 0 {
		p.tasks = make(chan func())
		for i := 0; i < size; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for fn := range p.tasks {
		fn()

		p.mu.Lock()
		p.pending--
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}

// Submit enqueues fn for execution. If the pool has zero workers, fn
// runs immediately on the caller's goroutine. pending is incremented
// here, before the task ever reaches a worker, so a Wait call racing a
// fresh Submit always sees the work as outstanding.
func (p *Pool) Submit(fn func()) {
	if p.size == 0 {
		fn()
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		panic("workerpool: Submit called after Stop")
	}
	p.pending++
	p.mu.Unlock()
	p.tasks <- fn
}

// SetMaxThreadNum resizes the pool by stopping the existing workers
// and starting size new ones. Tasks already handed to a worker finish
// before the new workers start; the task channel is unbuffered, so no
// task waits in a queue across the resize. This mirrors
// MyThreadPool::set_max_thread_num's use in
// KVStoreDistServer::SetProfilerConfig to reconfigure the pool used
// for asynchronous model distribution.
func (p *Pool) SetMaxThreadNum(size int) {
	p.Stop()

	p.mu.Lock()
	p.size = size
	p.closed = false
	p.mu.Unlock()

	if size > 0 {
		p.tasks = make(chan func())
		for i := 0; i < size; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	}
}

// Wait blocks until every task submitted so far has finished running.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.cond.Wait()
	}
}

// Stop closes the task queue and blocks until all workers have
// drained it and exited.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed || p.size == 0 {
		p.closed = true
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
}
