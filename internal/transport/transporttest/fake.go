// Package transporttest provides an in-memory Transport for tests.
package transporttest

import (
	"context"
	"sync"

	"logscope/internal/transport"
)

// Fake records requests and returns the configured errors. It never emits
// events on its own; tests push them explicitly.
type Fake struct {
	mu         sync.Mutex
	ConnectErr error
	StopErr    error
	ReadErr    error
	ReadResult transport.ReadResult

	connects []transport.MonitorRequest
	stops    []transport.StopRequest
	reads    []transport.ReadRequest
}

func (f *Fake) ConnectAndMonitor(_ context.Context, req transport.MonitorRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, req)
	return f.ConnectErr
}

func (f *Fake) StopStream(_ context.Context, req transport.StopRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, req)
	return f.StopErr
}

func (f *Fake) ReadOnce(_ context.Context, req transport.ReadRequest) (transport.ReadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, req)
	return f.ReadResult, f.ReadErr
}

func (f *Fake) SetConnectErr(err error) {
	f.mu.Lock()
	f.ConnectErr = err
	f.mu.Unlock()
}

func (f *Fake) SetStopErr(err error) {
	f.mu.Lock()
	f.StopErr = err
	f.mu.Unlock()
}

func (f *Fake) Connects() []transport.MonitorRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.MonitorRequest(nil), f.connects...)
}

// LastConnect returns the most recent connect request.
func (f *Fake) LastConnect() (transport.MonitorRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.connects) == 0 {
		return transport.MonitorRequest{}, false
	}
	return f.connects[len(f.connects)-1], true
}

func (f *Fake) Stops() []transport.StopRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.StopRequest(nil), f.stops...)
}

func (f *Fake) Reads() []transport.ReadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.ReadRequest(nil), f.reads...)
}
