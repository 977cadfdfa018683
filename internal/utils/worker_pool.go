package utils

import (
	"sync"
)

// WorkerPool runs sensor collection tasks off the aggregation tick so one
// slow source cannot stall the others.
type WorkerPool struct {
	workers   int
	jobQueue  chan func()
	waitGroup sync.WaitGroup
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers.
func NewWorkerPool(workers int) *WorkerPool {
	pool := &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// worker processes tasks from the jobQueue.
func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for task := range wp.jobQueue {
		task()
	}
}

// Submit adds a new task to the worker pool, blocking while the queue is full.
func (wp *WorkerPool) Submit(task func()) {
	wp.jobQueue <- task
}

// Shutdown waits for all workers to finish and then closes the worker pool.
func (wp *WorkerPool) Shutdown() {
	close(wp.jobQueue)
	wp.waitGroup.Wait()
}
