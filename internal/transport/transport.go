// Package transport defines the boundary between the session core and the
// drivers that actually reach remote log sources. Drivers acknowledge
// requests synchronously and report progress later as Events on a shared
// Channel.
package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"logscope/internal/apperr"
	"logscope/internal/model"
)

type EventKind string

const (
	EventConnectionStatus EventKind = "connection-status"
	EventStreamOpened     EventKind = "stream-opened"
	EventStreamClosed     EventKind = "stream-closed"
	EventData             EventKind = "data"
	EventStreamError      EventKind = "stream-error"
)

// Event is pushed by drivers. ConnectionID and Epoch echo the request that
// started the stream; drivers that only know the resource path leave them
// empty and the bridge falls back to path matching.
type Event struct {
	Kind         EventKind
	ConnectionID string
	Epoch        uint64
	Connected    bool
	Message      string
	ResourcePath string
	Content      string
}

type MonitorRequest struct {
	ConnectionID string
	Epoch        uint64
	Conn         model.RemoteConnection
	ResourcePath string
}

type StopRequest struct {
	ConnectionID string
	Kind         model.TransportKind
	Host         string
	Port         int
	ResourcePath string
}

type ReadRequest struct {
	ConnectionID string
	Conn         model.RemoteConnection
	ResourcePath string
}

type ReadResult struct {
	Content    string
	TotalLines int
	FileName   string
}

// Transport is implemented by every driver and by Mux.
type Transport interface {
	// ConnectAndMonitor starts streaming in the background. A nil error only
	// means the request was accepted.
	ConnectAndMonitor(ctx context.Context, req MonitorRequest) error
	StopStream(ctx context.Context, req StopRequest) error
	ReadOnce(ctx context.Context, req ReadRequest) (ReadResult, error)
}

// Mux dispatches requests to the driver registered for the connection kind.
type Mux struct {
	mu      sync.RWMutex
	drivers map[model.TransportKind]Transport
}

func NewMux() *Mux {
	return &Mux{drivers: map[model.TransportKind]Transport{}}
}

func (m *Mux) Register(kind model.TransportKind, t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[kind] = t
}

// Has reports whether a driver is registered for kind.
func (m *Mux) Has(kind model.TransportKind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.drivers[kind]
	return ok
}

func (m *Mux) driver(kind model.TransportKind, op, id string) (Transport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.drivers[kind]
	if !ok {
		return nil, apperr.NewTransportError(op, id, fmt.Errorf("no driver for %s", kind))
	}
	return t, nil
}

func (m *Mux) ConnectAndMonitor(ctx context.Context, req MonitorRequest) error {
	t, err := m.driver(req.Conn.Kind, "connect", req.ConnectionID)
	if err != nil {
		return err
	}
	return t.ConnectAndMonitor(ctx, req)
}

func (m *Mux) StopStream(ctx context.Context, req StopRequest) error {
	t, err := m.driver(req.Kind, "stop", req.ConnectionID)
	if err != nil {
		return err
	}
	return t.StopStream(ctx, req)
}

func (m *Mux) ReadOnce(ctx context.Context, req ReadRequest) (ReadResult, error) {
	t, err := m.driver(req.Conn.Kind, "read", req.ConnectionID)
	if err != nil {
		return ReadResult{}, err
	}
	return t.ReadOnce(ctx, req)
}

// CountLines counts the non-empty lines of a read-once payload.
func CountLines(s string) int {
	n := 0
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}
