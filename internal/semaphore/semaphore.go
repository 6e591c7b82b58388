package semaphore

import "context"

// Semaphore implements semaphore synchronization primitive.
type Semaphore struct {
	limit chan struct{}
}

// New returns new initialized semaphore.
func New(l int) Semaphore {
	limit := make(chan struct{}, l)
	// for i := 0; i < l; i++ {
	// 	limit <- struct{}{}
	// }
	return Semaphore{
		limit: limit,
	}
}

// Acquire the lock. Returns false if ctx is done before a token arrives.
func (s *Semaphore) Acquire(ctx context.Context) bool {
	select {
	case <-s.limit:
		return true
	case <-ctx.Done():
		return false
	}
}

// Release the lock.
func (s *Semaphore) Release() {
	s.limit <- struct{}{}
}
