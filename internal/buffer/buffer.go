// Package buffer keeps the raw text chunks received for each connection in
// arrival order.
package buffer

import (
	"strings"
	"sync"
)

type Stats struct {
	Chunks  int
	Total   uint64 // chunks ever appended
	Dropped uint64 // chunks evicted by the cap
}

// ring is a bounded FIFO of chunks. cap 0 means unbounded.
type ring struct {
	buf     []string
	cap     int
	start   int
	size    int
	total   uint64
	dropped uint64
}

func (r *ring) push(s string) {
	r.total++
	if r.cap <= 0 {
		r.buf = append(r.buf, s)
		r.size++
		return
	}
	if r.buf == nil {
		r.buf = make([]string, r.cap)
	}
	if r.size < r.cap {
		r.buf[(r.start+r.size)%r.cap] = s
		r.size++
		return
	}
	// overwrite oldest
	r.buf[r.start] = s
	r.start = (r.start + 1) % r.cap
	r.dropped++
}

func (r *ring) snapshot() []string {
	out := make([]string, r.size)
	if r.cap <= 0 {
		copy(out, r.buf)
		return out
	}
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%r.cap]
	}
	return out
}

// Store holds one ring per connection id.
type Store struct {
	mu    sync.RWMutex
	cap   int
	rings map[string]*ring
}

// New returns a store whose per-connection buffers hold at most capacity
// chunks. capacity <= 0 keeps everything.
func New(capacity int) *Store {
	return &Store{cap: capacity, rings: map[string]*ring{}}
}

func (s *Store) Append(id, chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rings[id]
	if !ok {
		r = &ring{cap: s.cap}
		s.rings[id] = r
	}
	r.push(chunk)
}

func (s *Store) Chunks(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rings[id]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Joined returns the buffered chunks joined with newlines.
func (s *Store) Joined(id string) string {
	return strings.Join(s.Chunks(id), "\n")
}

func (s *Store) Len(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rings[id]; ok {
		return r.size
	}
	return 0
}

// Clear drops the buffer for id, counters included.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rings, id)
}

func (s *Store) Stats(id string) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rings[id]
	if !ok {
		return Stats{}
	}
	return Stats{Chunks: r.size, Total: r.total, Dropped: r.dropped}
}
