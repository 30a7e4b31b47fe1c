package terminal

import "sync"

// Scrollback is a fixed-capacity byte ring holding the most recent raw
// output of a session. Its snapshot is replayed to late subscribers so they
// see recent history before live frames.
type Scrollback struct {
	mu   sync.RWMutex
	data []byte
	size int
	head int
	full bool
}

// NewScrollback returns a ring holding at most size bytes.
func NewScrollback(size int) *Scrollback {
	if size <= 0 {
		size = 1
	}
	return &Scrollback{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends output, overwriting the oldest bytes when full.
func (s *Scrollback) Write(p []byte) {
	if len(p) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Only the tail of an oversized chunk can survive.
	if len(p) >= s.size {
		copy(s.data, p[len(p)-s.size:])
		s.head = 0
		s.full = true
		return
	}

	n := copy(s.data[s.head:], p)
	if n < len(p) {
		copy(s.data, p[n:])
	}
	next := (s.head + len(p)) % s.size
	if !s.full && next <= s.head && len(p) > 0 {
		s.full = true
	}
	s.head = next
}

// Snapshot returns the buffered bytes oldest-first without consuming them.
func (s *Scrollback) Snapshot() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.full {
		out := make([]byte, s.head)
		copy(out, s.data[:s.head])
		return out
	}

	out := make([]byte, s.size)
	n := copy(out, s.data[s.head:])
	copy(out[n:], s.data[:s.head])
	return out
}

// Len returns the number of buffered bytes.
func (s *Scrollback) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return s.size
	}
	return s.head
}

// Reset discards all buffered bytes. Used when a restart begins a new
// output epoch.
func (s *Scrollback) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = 0
	s.full = false
}
