package util

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// WorkerPool runs CPU-bound tasks on a bounded set of goroutines so batch
// extraction does not serialize behind a single caller
type WorkerPool struct {
	logger      *logrus.Entry
	workerCount int

	taskChan chan func()

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a pool with the given worker count. A non-positive
// count uses the number of CPUs.
func NewWorkerPool(workerCount int, logger *logrus.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	return &WorkerPool{
		logger:      logger.WithField("component", "worker_pool"),
		workerCount: workerCount,
		taskChan:    make(chan func(), workerCount*10),
	}
}

// Start launches the workers. Starting twice, or after Stop, is a no-op.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started || wp.stopped {
		return
	}

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i + 1)
	}

	wp.started = true
	wp.logger.WithField("worker_count", wp.workerCount).Debug("Worker pool started")
}

// Stop closes the queue and waits for the workers to drain it. Every task
// already accepted by Submit runs before Stop returns; a stopped pool
// rejects further submissions.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	started := wp.started
	close(wp.taskChan)
	wp.mu.Unlock()

	if started {
		wp.wg.Wait()
	}
	wp.logger.Debug("Worker pool stopped")
}

// Submit enqueues a task, starting the workers on first use and blocking
// while the queue is full. A task accepted here is guaranteed to run even
// when Stop races the submission. Returns false once the pool has stopped.
func (wp *WorkerPool) Submit(fn func()) bool {
	if fn == nil {
		return false
	}

	wp.Start()

	// The read lock keeps Stop from closing the queue between the stopped
	// check and the send; workers keep draining, so a full queue cannot
	// hold the lock indefinitely.
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return false
	}

	wp.taskChan <- fn
	return true
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for task := range wp.taskChan {
		wp.runTask(id, task)
	}
}

func (wp *WorkerPool) runTask(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.WithFields(logrus.Fields{
				"worker_id": id,
				"panic":     r,
			}).Error("Task execution panic")
		}
	}()
	task()
}
