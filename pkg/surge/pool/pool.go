// Package pool implements the fixed-size worker pool from spec.md §4.2:
// a FIFO task queue behind a mutex and condition variable, serviced by a
// fixed number of worker goroutines, with cooperative shutdown and
// task-level panic isolation.
//
// This is grounded directly on original_source/src/thread_pool.cpp: an
// explicit queue + pending-counter + wait-condition, rather than a
// channel-based pool, because spec.md's contract (enqueue / wait_for_all
// / stop, with a pending-task count workers decrement on completion) maps
// onto that shape one-to-one.
package pool

import (
	"sync"
	"time"

	"github.com/wattlab/surge/internal/logx"
)

// Task is one unit of work — one connection's full lifecycle, for the
// server's use (spec.md §4.2: "one connection per task").
type Task func()

// Pool is a fixed-size FIFO worker pool.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	tasks    []Task
	stopped  bool
	pending  int
	waitCond *sync.Cond
	waitMu   sync.Mutex
	wg       sync.WaitGroup
	log      logx.Conn
}

// New starts numWorkers goroutines and returns the pool they service.
func New(numWorkers int, logger *logx.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if logger == nil {
		logger = logx.Default
	}
	p := &Pool{log: logger.ForConnection(0)}
	p.cond = sync.NewCond(&p.mu)
	p.waitCond = sync.NewCond(&p.waitMu)

	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	return p
}

// Enqueue pushes task onto the FIFO queue and wakes one worker.
func (p *Pool) Enqueue(task Task) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.tasks = append(p.tasks, task)
	p.pending++
	p.mu.Unlock()
	p.cond.Signal()
}

// WaitForAll blocks until every enqueued task has completed.
func (p *Pool) WaitForAll() {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	for p.pendingCount() != 0 {
		p.waitCond.Wait()
	}
}

func (p *Pool) pendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Stop requests cooperative shutdown: workers finish their in-flight
// task, drain whatever remains in the queue, then exit. Stop does not
// block; call Wait if the caller needs to join the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Wait blocks until every worker goroutine has exited. Call this after
// Stop to join the pool.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.tasks) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if len(p.tasks) == 0 && p.stopped {
			p.mu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks = p.tasks[1:]
		p.mu.Unlock()

		p.runTask(id, task)

		p.mu.Lock()
		p.pending--
		done := p.pending == 0
		p.mu.Unlock()
		if done {
			p.waitMu.Lock()
			p.waitCond.Broadcast()
			p.waitMu.Unlock()
		}
	}
}

// runTask executes task with panic isolation: a panicking task is
// logged and never propagates out of the worker (spec.md §4.2 "task
// exceptions are isolated and never propagate out of the worker"). It
// also logs the task's wall-clock duration at debug level, matching
// original_source/src/thread_pool.cpp's completion-time logging.
func (p *Pool) runTask(id int, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker task panicked", logx.Field{Key: "worker", Value: id}, logx.Field{Key: "panic", Value: r})
		}
		p.log.Debug("worker task completed",
			logx.Field{Key: "worker", Value: id},
			logx.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		)
	}()
	task()
}
