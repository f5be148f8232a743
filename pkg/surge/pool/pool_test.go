package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllEnqueuedTasks(t *testing.T) {
	p := New(4, nil)
	defer func() {
		p.Stop()
		p.Wait()
	}()

	var n int64
	for i := 0; i < 100; i++ {
		p.Enqueue(func() { atomic.AddInt64(&n, 1) })
	}
	p.WaitForAll()

	if got := atomic.LoadInt64(&n); got != 100 {
		t.Fatalf("ran %d tasks; want 100", got)
	}
}

func TestPoolWaitForAllBlocksUntilDrained(t *testing.T) {
	p := New(2, nil)
	defer func() {
		p.Stop()
		p.Wait()
	}()

	var mu sync.Mutex
	done := false

	p.Enqueue(func() {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		done = true
		mu.Unlock()
	})
	p.WaitForAll()

	mu.Lock()
	defer mu.Unlock()
	if !done {
		t.Fatal("WaitForAll returned before the task finished")
	}
}

func TestPoolPanicIsIsolated(t *testing.T) {
	p := New(2, nil)
	defer func() {
		p.Stop()
		p.Wait()
	}()

	p.Enqueue(func() { panic("boom") })

	var ran int64
	p.Enqueue(func() { atomic.AddInt64(&ran, 1) })
	p.WaitForAll()

	if atomic.LoadInt64(&ran) != 1 {
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestPoolStopDrainsQueueBeforeExit(t *testing.T) {
	p := New(1, nil)

	var n int64
	for i := 0; i < 5; i++ {
		p.Enqueue(func() { atomic.AddInt64(&n, 1) })
	}
	p.Stop()
	p.Wait()

	if got := atomic.LoadInt64(&n); got != 5 {
		t.Fatalf("ran %d of 5 queued tasks before exit", got)
	}
}

func TestPoolEnqueueAfterStopIsNoop(t *testing.T) {
	p := New(1, nil)
	p.Stop()
	p.Wait()

	var ran int64
	p.Enqueue(func() { atomic.AddInt64(&ran, 1) })
	time.Sleep(10 * time.Millisecond)

	if atomic.LoadInt64(&ran) != 0 {
		t.Fatal("task enqueued after Stop should not run")
	}
}
