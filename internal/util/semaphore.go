package util

// Semaphore bounds concurrent access to a task-graph walk: a buffered
// channel used as a counting semaphore. Concurrency <= 0 means unlimited
// (Acquire/Release are no-ops).
type Semaphore struct {
	ch chan struct{}
}

// NewSemaphore builds a semaphore with the given concurrency limit.
func NewSemaphore(concurrency int) *Semaphore {
	if concurrency <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{ch: make(chan struct{}, concurrency)}
}

// Acquire blocks until a slot is available.
func (s *Semaphore) Acquire() {
	if s.ch == nil {
		return
	}
	s.ch <- struct{}{}
}

// Release frees a slot.
func (s *Semaphore) Release() {
	if s.ch == nil {
		return
	}
	<-s.ch
}
