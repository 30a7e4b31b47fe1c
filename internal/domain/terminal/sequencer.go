package terminal

import "sync"

// Sequencer totals-orders input from concurrent producers into a single
// FIFO consumed by one writer. Submission order equals delivery order, so
// interleaved keystrokes and programmatic writes never reorder.
type Sequencer struct {
	mu       sync.Mutex
	queue    chan []byte
	capacity int
	closed   bool
}

// NewSequencer returns a sequencer with a bounded queue.
func NewSequencer(capacity int) *Sequencer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Sequencer{
		queue:    make(chan []byte, capacity),
		capacity: capacity,
	}
}

// Submit enqueues one input chunk. A full queue returns ResourceExhausted
// rather than blocking the caller; a closed sequencer rejects the write.
func (s *Sequencer) Submit(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSubscriptionClosed
	}

	select {
	case s.queue <- data:
		return nil
	default:
		return &ResourceExhausted{Resource: "input queue", Limit: s.capacity}
	}
}

// Chunks exposes the consumer side. Only the session's write loop reads it.
func (s *Sequencer) Chunks() <-chan []byte {
	return s.queue
}

// Close stops accepting input. Queued chunks already accepted remain
// readable until drained.
func (s *Sequencer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}
