package transport

import (
	"strings"
	"sync"
)

// Channel is the single push channel shared by all drivers. Emit blocks
// while the channel is full so chunks are never reordered or lost; it gives
// up only once the channel is closed.
type Channel struct {
	ch       chan Event
	done     chan struct{}
	closeOne sync.Once
}

func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 256
	}
	return &Channel{ch: make(chan Event, size), done: make(chan struct{})}
}

func (c *Channel) Emit(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.ch <- ev:
		return true
	case <-c.done:
		return false
	}
}

// Events is the receive side consumed by the ingestion bridge.
func (c *Channel) Events() <-chan Event { return c.ch }

// Done is closed when the channel shuts down.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Close stops further emits. The event channel itself is left open so a
// late Emit never panics.
func (c *Channel) Close() {
	c.closeOne.Do(func() { close(c.done) })
}

// Emitter binds a Channel to one stream so drivers do not repeat the
// correlation fields on every event.
type Emitter struct {
	ch           *Channel
	ConnectionID string
	Epoch        uint64
	ResourcePath string
}

func (c *Channel) For(id string, epoch uint64, path string) Emitter {
	return Emitter{ch: c, ConnectionID: id, Epoch: epoch, ResourcePath: path}
}

func (e Emitter) base(kind EventKind) Event {
	return Event{Kind: kind, ConnectionID: e.ConnectionID, Epoch: e.Epoch, ResourcePath: e.ResourcePath}
}

func (e Emitter) Status(connected bool, msg string) bool {
	ev := e.base(EventConnectionStatus)
	ev.Connected = connected
	ev.Message = msg
	return e.ch.Emit(ev)
}

func (e Emitter) Opened() bool { return e.ch.Emit(e.base(EventStreamOpened)) }

func (e Emitter) Closed() bool { return e.ch.Emit(e.base(EventStreamClosed)) }

// Data emits one chunk. Trailing newlines are stripped since the buffer
// joins chunks with a newline.
func (e Emitter) Data(content string) bool {
	content = strings.TrimRight(content, "\r\n")
	if content == "" {
		return true
	}
	ev := e.base(EventData)
	ev.Content = content
	return e.ch.Emit(ev)
}

func (e Emitter) Error(err error) bool {
	ev := e.base(EventStreamError)
	ev.Message = err.Error()
	return e.ch.Emit(ev)
}
