package workerpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroSizePoolRunsInline(t *testing.T) {
	p := New(0)
	defer p.Stop()

	ran := false
	p.Submit(func() { ran = true })
	assert.True(t, ran)
}

func TestPoolRunsAllSubmittedTasks(t *testing.T) {
	p := New(3)
	defer p.Stop()

	const n = 50
	var count int32
	for i := 0; i < n; i++ {
		p.Submit(func() { atomic.AddInt32(&count, 1) })
	}
	p.Wait()
	assert.EqualValues(t, n, atomic.LoadInt32(&count))
}

func TestWaitBlocksUntilTasksComplete(t *testing.T) {
	p := New(2)
	defer p.Stop()

	var done int32
	release := make(chan struct{})
	p.Submit(func() {
		<-release
		atomic.AddInt32(&done, 1)
	})
	close(release)
	p.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&done))
}

func TestSetMaxThreadNumResizesPool(t *testing.T) {
	p := New(1)
	defer p.Stop()

	p.SetMaxThreadNum(4)
	var count int32
	for i := 0; i < 10; i++ {
		p.Submit(func() { atomic.AddInt32(&count, 1) })
	}
	p.Wait()
	assert.EqualValues(t, 10, atomic.LoadInt32(&count))
}

func TestSubmitAfterStopPanics(t *testing.T) {
	p := New(2)
	p.Stop()
	assert.Panics(t, func() {
		p.Submit(func() {})
	})
}
