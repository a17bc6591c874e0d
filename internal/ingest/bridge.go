// Package ingest consumes the transport push channel and routes each event
// to the connection that owns it.
package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"logscope/internal/apperr"
	"logscope/internal/transport"
	"logscope/internal/util/logx"
)

var ErrAlreadySubscribed = errors.New("ingest: bridge already subscribed")

// Sink applies routed events. Each method runs as one atomic step on the
// owner's side and returns a StaleEventError for outdated events.
type Sink interface {
	// Resolve maps an event to its owning connection, by echoed id first and
	// by resource path otherwise.
	Resolve(connectionID, resourcePath string) (string, bool)
	ApplyStatus(id string, ev transport.Event) error
	ApplyStreamOpened(id string, ev transport.Event) error
	ApplyStreamClosed(id string, ev transport.Event) error
	ApplyData(id string, ev transport.Event) error
	ApplyStreamError(id string, ev transport.Event) error
}

type Stats struct {
	Routed  uint64
	Dropped uint64 // routing misses
	Stale   uint64
}

// Bridge is the only subscriber of the push channel. Events are applied in
// arrival order by a single goroutine.
type Bridge struct {
	events <-chan transport.Event
	sink   Sink

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	routed  atomic.Uint64
	dropped atomic.Uint64
	stale   atomic.Uint64
}

func NewBridge(events <-chan transport.Event, sink Sink) *Bridge {
	return &Bridge{events: events, sink: sink, done: make(chan struct{})}
}

// Start subscribes to the channel. It may be called once per bridge.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadySubscribed
	}
	b.started = true
	ctx, b.cancel = context.WithCancel(ctx)
	go b.run(ctx)
	return nil
}

// Close unsubscribes and waits for the in-flight event to finish.
func (b *Bridge) Close() {
	b.mu.Lock()
	started, cancel := b.started, b.cancel
	b.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-b.done
}

func (b *Bridge) Stats() Stats {
	return Stats{Routed: b.routed.Load(), Dropped: b.dropped.Load(), Stale: b.stale.Load()}
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.events:
			if !ok {
				return
			}
			b.handle(ev)
		}
	}
}

func (b *Bridge) handle(ev transport.Event) {
	id, ok := b.sink.Resolve(ev.ConnectionID, ev.ResourcePath)
	if !ok {
		b.dropped.Add(1)
		miss := apperr.NewRoutingMiss(ev.ConnectionID, ev.ResourcePath)
		logx.L().Warn("ingest: dropping event", zap.String("kind", string(ev.Kind)), zap.Error(miss))
		return
	}

	var err error
	switch ev.Kind {
	case transport.EventConnectionStatus:
		err = b.sink.ApplyStatus(id, ev)
	case transport.EventStreamOpened:
		err = b.sink.ApplyStreamOpened(id, ev)
	case transport.EventStreamClosed:
		err = b.sink.ApplyStreamClosed(id, ev)
	case transport.EventData:
		err = b.sink.ApplyData(id, ev)
	case transport.EventStreamError:
		err = b.sink.ApplyStreamError(id, ev)
	default:
		logx.Warnf("ingest: unknown event kind %q", ev.Kind)
		return
	}

	switch {
	case err == nil:
		b.routed.Add(1)
	case apperr.IsStale(err):
		b.stale.Add(1)
		logx.Debugf("ingest: %v", err)
	default:
		logx.L().Warn("ingest: event not applied", zap.String("connection", id), zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}
