package executor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunsClosureSynchronously(t *testing.T) {
	e := New()
	defer e.Stop()

	var n int32
	e.Exec(func() { atomic.AddInt32(&n, 1) })
	assert.EqualValues(t, 1, atomic.LoadInt32(&n))
}

func TestExecSerializesConcurrentCallers(t *testing.T) {
	e := New()
	defer e.Stop()

	const callers = 20
	var running int32
	var maxObserved int32
	done := make(chan struct{})

	for i := 0; i < callers; i++ {
		go func() {
			e.Exec(func() {
				cur := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&maxObserved)
					if cur <= old || atomic.CompareAndSwapInt32(&maxObserved, old, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < callers; i++ {
		<-done
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&maxObserved), "executor ran closures concurrently")
}

func TestStopDrainsQueuedWork(t *testing.T) {
	e := New()
	var n int32
	e.Exec(func() { atomic.AddInt32(&n, 1) })
	e.Exec(func() { atomic.AddInt32(&n, 1) })
	e.Stop()
	assert.EqualValues(t, 2, atomic.LoadInt32(&n))
}

func TestExecAfterStopPanics(t *testing.T) {
	e := New()
	e.Stop()
	require.Panics(t, func() {
		e.Exec(func() {})
	})
}

func TestRecursiveExecPanicsInsteadOfDeadlocking(t *testing.T) {
	e := New()
	defer e.Stop()

	assert.Panics(t, func() {
		runInline(e, func() {
			e.Exec(func() {})
		})
	})
}

// TestRealRecursiveExecPanics exercises the actual executor goroutine
// rather than runInline's simulation: a closure running on e's own
// goroutine that calls back into Exec must panic, not deadlock. The
// recover lives inside the outer closure (still running on the
// executor's goroutine) so the panic is observed without crashing the
// test binary.
func TestRealRecursiveExecPanics(t *testing.T) {
	e := New()
	defer e.Stop()

	var recovered interface{}
	e.Exec(func() {
		defer func() { recovered = recover() }()
		e.Exec(func() {})
	})
	assert.NotNil(t, recovered)
}

// TestIndependentExecutorsDontFalsePositive guards against the guard
// living anywhere but on the Executor itself: while A's owner
// goroutine is mid-closure, an unrelated Exec on B must run
// normally, not panic as if it were recursive.
func TestIndependentExecutorsDontFalsePositive(t *testing.T) {
	a, b := New(), New()
	defer a.Stop()
	defer b.Stop()

	inA := make(chan struct{})
	release := make(chan struct{})
	go a.Exec(func() {
		close(inA)
		<-release
	})
	<-inA

	var n int32
	assert.NotPanics(t, func() {
		b.Exec(func() { atomic.AddInt32(&n, 1) })
	})
	assert.EqualValues(t, 1, atomic.LoadInt32(&n))
	close(release)
}
