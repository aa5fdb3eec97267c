package utils

import (
	"sync"
)

// WorkerPool runs submitted tasks on a fixed set of workers. The event
// publishers use it so slow broker round-trips never block an evaluation.
type WorkerPool struct {
	jobQueue  chan func()
	waitGroup sync.WaitGroup
}

// NewWorkerPool creates a pool with the given number of workers and a job
// queue of queueSize.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	pool := &WorkerPool{
		jobQueue: make(chan func(), queueSize),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for job := range wp.jobQueue {
		job()
	}
}

// Submit queues a task. Blocks when the queue is full.
func (wp *WorkerPool) Submit(task func()) {
	wp.jobQueue <- task
}

// TrySubmit queues a task without blocking and reports whether the queue
// accepted it.
func (wp *WorkerPool) TrySubmit(task func()) bool {
	select {
	case wp.jobQueue <- task:
		return true
	default:
		return false
	}
}

// Shutdown drains the queue and waits for all workers to finish.
func (wp *WorkerPool) Shutdown() {
	close(wp.jobQueue)
	wp.waitGroup.Wait()
}
