// Package executor provides the single-owner-thread dispatcher
// described in spec §4.1: a goroutine to which arbitrary closures can
// be submitted synchronously, giving host callbacks (the optimizer,
// the controller) a stable, serialized execution context.
//
// This generalizes original_source/src/kvstore/kvstore_dist_server.h's
// Executor class (a condition-variable-guarded queue of
// promise/future-paired closures) into idiomatic Go: an unbuffered
// channel of tasks plus a per-task done channel stands in for the
// promise/future pair.
package executor

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Executor runs every submitted closure on one dedicated goroutine, in
// FIFO order, never running two closures concurrently.
type Executor struct {
	tasks    chan task
	stopped  chan struct{}
	stopOnce sync.Once

	// isOwnerGoroutine is a best-effort recursion guard scoped to this
	// Executor alone. A real thread-identity check isn't available for
	// goroutines in Go, so this degrades to "never detect recursion"
	// rather than false-positive on unrelated goroutines: run sets it
	// for the duration of every real t.fn() call on the owner goroutine,
	// so a closure that calls back into this Executor's Exec from
	// inside itself panics instead of deadlocking. It's an atomic.Bool
	// rather than a plain bool because Exec reads it from arbitrary
	// caller goroutines while run's goroutine writes it. It's a field,
	// not a package var, so one Executor's in-flight closure can never
	// be mistaken for recursion on a different Executor.
	isOwnerGoroutine atomic.Bool
}

type task struct {
	fn   func()
	done chan struct{}
}

// New creates an Executor and starts its owner goroutine. Callers must
// eventually call Stop to let the goroutine exit.
func New() *Executor {
	e := &Executor{
		tasks:   make(chan task),
		stopped: make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	for t := range e.tasks {
		e.isOwnerGoroutine.Store(true)
		t.fn()
		e.isOwnerGoroutine.Store(false)
		close(t.done)
	}
	close(e.stopped)
}

// Exec enqueues fn and blocks the caller until fn has run to
// completion on the executor's goroutine. Exec is safe to call from
// any goroutine except the executor's own: calling it recursively from
// inside a closure already running on the executor would deadlock (the
// owner goroutine is busy running the outer closure and can never pick
// up the inner one), so that case panics immediately instead of
// hanging forever.
func (e *Executor) Exec(fn func()) {
	if e.isOwnerGoroutine.Load() {
		panic(errors.New("executor: Exec called recursively from the executor's own goroutine"))
	}
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case e.tasks <- t:
	case <-e.stopped:
		panic(errors.New("executor: Exec called after Stop"))
	}
	<-t.done
}

// Stop enqueues a sentinel that causes the owner goroutine to exit
// after draining every closure queued before it. Already-queued
// closures complete; Stop itself blocks until the goroutine has
// exited. Safe to call more than once — a caller that issues its own
// StopServer command and then defers Close shouldn't have to track
// which one already stopped the executor.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() { close(e.tasks) })
	<-e.stopped
}

// runInline is used only by tests that need to simulate the recursive
// call path without going through a real Exec round-trip. Production
// code should never call it.
func runInline(e *Executor, fn func()) {
	prev := e.isOwnerGoroutine.Load()
	e.isOwnerGoroutine.Store(true)
	defer e.isOwnerGoroutine.Store(prev)
	fn()
	runtime.Gosched()
}
