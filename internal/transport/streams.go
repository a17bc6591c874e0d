package transport

import (
	"context"
	"sync"
)

// Streams tracks the cancel funcs of running streams by key. Drivers key by
// StreamKey so two connections on the same target never share an entry.
type Streams struct {
	mu      sync.Mutex
	cancels map[string]streamHandle
	seq     uint64
}

type streamHandle struct {
	id     uint64
	cancel context.CancelFunc
}

// StreamKey identifies the stream of one connection on one resource.
func StreamKey(connectionID, resource string) string {
	return connectionID + "|" + resource
}

func NewStreams() *Streams {
	return &Streams{cancels: map[string]streamHandle{}}
}

// Start derives a cancellable context for key, cancelling any stream already
// running under it. The returned release func removes the entry only if it
// still belongs to this stream.
func (s *Streams) Start(parent context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	if old, ok := s.cancels[key]; ok {
		old.cancel()
	}
	s.seq++
	h := streamHandle{id: s.seq, cancel: cancel}
	s.cancels[key] = h
	s.mu.Unlock()

	release := func() {
		cancel()
		s.mu.Lock()
		if cur, ok := s.cancels[key]; ok && cur.id == h.id {
			delete(s.cancels, key)
		}
		s.mu.Unlock()
	}
	return ctx, release
}

// Stop cancels the stream under key and reports whether one was running.
func (s *Streams) Stop(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.cancels[key]
	if ok {
		h.cancel()
		delete(s.cancels, key)
	}
	return ok
}

// StopAll cancels everything; used on shutdown.
func (s *Streams) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, h := range s.cancels {
		h.cancel()
		delete(s.cancels, k)
	}
}

func (s *Streams) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}
