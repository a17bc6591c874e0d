// Package session owns the connection lifecycle: it issues transport
// commands, applies the events the bridge routes back, and projects the
// active connection's buffer into a display string.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"logscope/internal/apperr"
	"logscope/internal/buffer"
	"logscope/internal/model"
	"logscope/internal/registry"
	"logscope/internal/transport"
	"logscope/internal/util/logx"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	defaultNoticeBuffer   = 64
	stopTimeout           = 5 * time.Second
)

type Options struct {
	// ConnectTimeout bounds the Connecting state. Zero disables the timer.
	ConnectTimeout time.Duration
	NoticeBuffer   int
}

// Manager applies every command and routed event as one step under mu.
// Transport calls happen outside the lock.
type Manager struct {
	mu      sync.Mutex
	reg     *registry.Registry
	buf     *buffer.Store
	tr      transport.Transport
	timeout time.Duration

	epochs  map[string]uint64
	pending map[string]string // target path while Connecting
	started map[string]transport.StopRequest // identity each stream was started with
	timers  map[string]*time.Timer
	proj    projector
	closed  bool

	notices chan Notice
	changes chan struct{}
}

func New(reg *registry.Registry, buf *buffer.Store, tr transport.Transport, opts Options) *Manager {
	if opts.NoticeBuffer <= 0 {
		opts.NoticeBuffer = defaultNoticeBuffer
	}
	return &Manager{
		reg:     reg,
		buf:     buf,
		tr:      tr,
		timeout: opts.ConnectTimeout,
		epochs:  map[string]uint64{},
		pending: map[string]string{},
		started: map[string]transport.StopRequest{},
		timers:  map[string]*time.Timer{},
		notices: make(chan Notice, opts.NoticeBuffer),
		changes: make(chan struct{}, 1),
	}
}

func (m *Manager) Registry() *registry.Registry { return m.reg }
func (m *Manager) Buffers() *buffer.Store       { return m.buf }

// Notifications delivers user-visible notices. Notices are dropped when
// nobody keeps up.
func (m *Manager) Notifications() <-chan Notice { return m.notices }

// Changes fires after any state change. Multiple changes coalesce.
func (m *Manager) Changes() <-chan struct{} { return m.changes }

func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.proj.view
}

// Epoch returns the current epoch of id.
func (m *Manager) Epoch(id string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epochs[id]
}

// Close stops pending connect timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

func validateCredentials(c model.RemoteConnection) error {
	if c.Kind == model.KindShellSession {
		cr := c.Credential
		if cr.Username == "" {
			return apperr.NewValidationError("credential.username", "username is required")
		}
		switch cr.AuthType {
		case model.AuthPassword:
			if cr.Password == "" {
				return apperr.NewValidationError("credential.password", "password is required")
			}
		case model.AuthKey:
			if cr.KeyFile == "" {
				return apperr.NewValidationError("credential.keyFile", "key file is required")
			}
		default:
			if cr.Password == "" && cr.KeyFile == "" {
				return apperr.NewValidationError("credential", "password or key file is required")
			}
		}
	}
	if c.TargetPath == "" {
		return apperr.NewValidationError("targetPath", "target path is required")
	}
	return nil
}

// Connect starts streaming id. It returns once the transport acknowledged the
// request; the outcome arrives later as a connection-status event.
func (m *Manager) Connect(ctx context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.reg.Get(id)
	if !ok {
		m.mu.Unlock()
		return apperr.NewNotFoundError("connection", id)
	}
	if err := validateCredentials(c); err != nil {
		m.mu.Unlock()
		return err
	}
	running := c.Monitoring || c.Status == model.StatusConnecting || c.Status == model.StatusConnected
	prev, hasPrev := m.stopTarget(id, c)
	m.epochs[id]++
	epoch := m.epochs[id]
	m.reg.SetRuntime(id, func(rc *model.RemoteConnection) {
		rc.Status = model.StatusConnecting
		rc.Monitoring = false
		rc.LastError = ""
		rc.ResourcePath = ""
	})
	m.buf.Clear(id)
	m.proj.refresh(id, "")
	m.pending[id] = c.TargetPath
	m.started[id] = transport.StopRequest{
		ConnectionID: id, Kind: c.Kind, Host: c.Host, Port: c.Port, ResourcePath: c.TargetPath,
	}
	m.armTimer(id, epoch)
	m.signal()
	m.mu.Unlock()

	// the previous stream may point at another host or path by now
	if running && hasPrev {
		sctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		err := m.tr.StopStream(sctx, prev)
		cancel()
		if err != nil {
			logx.L().Warn("session: stop before reconnect failed",
				zap.String("connection", c.Name), zap.String("path", prev.ResourcePath), zap.Error(err))
		}
	}

	logx.L().Info("session: connecting",
		zap.String("connection", c.Name), zap.String("kind", string(c.Kind)), zap.Uint64("epoch", epoch))
	err := m.tr.ConnectAndMonitor(ctx, transport.MonitorRequest{
		ConnectionID: id,
		Epoch:        epoch,
		Conn:         c,
		ResourcePath: c.TargetPath,
	})
	if err == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epochs[id] == epoch {
		m.fail(id, err.Error())
		m.signal()
	}
	var te *apperr.TransportError
	if errors.As(err, &te) {
		return err
	}
	return apperr.NewTransportError("connect", id, err)
}

// Disconnect stops the stream of id. A connection still Connecting is
// stopped through its pending target path.
func (m *Manager) Disconnect(ctx context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.reg.Get(id)
	if !ok {
		m.mu.Unlock()
		return apperr.NewNotFoundError("connection", id)
	}
	req, ok := m.stopTarget(id, c)
	if !ok {
		m.mu.Unlock()
		return apperr.NewValidationError("resourcePath", "connection has no active stream")
	}
	m.epochs[id]++
	epoch := m.epochs[id]
	m.stopTimer(id)
	delete(m.pending, id)
	delete(m.started, id)
	m.mu.Unlock()

	err := m.tr.StopStream(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epochs[id] != epoch {
		// a newer command took over
		return nil
	}
	if err != nil {
		m.fail(id, err.Error())
		m.signal()
		var te *apperr.TransportError
		if errors.As(err, &te) {
			return err
		}
		return apperr.NewTransportError("stop", id, err)
	}
	m.reg.SetRuntime(id, func(rc *model.RemoteConnection) {
		rc.Status = model.StatusDisconnected
		rc.Monitoring = false
		rc.LastError = ""
		rc.ResourcePath = ""
	})
	m.buf.Clear(id)
	m.proj.clearIf(id)
	m.notify(NoticeInfo, c, "disconnected")
	m.signal()
	return nil
}

// Delete removes id, stopping its stream first when one may be running.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	c, ok := m.reg.Get(id)
	if !ok {
		m.mu.Unlock()
		return apperr.NewNotFoundError("connection", id)
	}
	req, hasStream := m.stopTarget(id, c)
	live := c.Monitoring || c.Status == model.StatusConnecting || c.Status == model.StatusConnected
	if err := m.reg.Delete(id); err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.epochs, id)
	delete(m.pending, id)
	delete(m.started, id)
	m.stopTimer(id)
	m.buf.Clear(id)
	m.proj.clearIf(id)
	m.signal()
	m.mu.Unlock()

	if live && hasStream {
		if err := m.tr.StopStream(ctx, req); err != nil {
			logx.L().Warn("session: stop on delete failed", zap.String("connection", c.Name), zap.Error(err))
		}
	}
	return nil
}

// stopTarget returns the request that stops the stream of id: the identity
// it was started with and its live or pending path. Callers hold m.mu.
func (m *Manager) stopTarget(id string, c model.RemoteConnection) (transport.StopRequest, bool) {
	req, ok := m.started[id]
	if !ok {
		req = transport.StopRequest{ConnectionID: id, Kind: c.Kind, Host: c.Host, Port: c.Port}
	}
	switch {
	case c.ResourcePath != "":
		req.ResourcePath = c.ResourcePath
	case m.pending[id] != "":
		req.ResourcePath = m.pending[id]
	default:
		return transport.StopRequest{}, false
	}
	return req, true
}

// ReadOnce fetches the target of id without streaming.
func (m *Manager) ReadOnce(ctx context.Context, id string) (transport.ReadResult, error) {
	c, ok := m.reg.Get(id)
	if !ok {
		return transport.ReadResult{}, apperr.NewNotFoundError("connection", id)
	}
	if err := validateCredentials(c); err != nil {
		return transport.ReadResult{}, err
	}
	res, err := m.tr.ReadOnce(ctx, transport.ReadRequest{ConnectionID: id, Conn: c, ResourcePath: c.TargetPath})
	if err == nil {
		return res, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reg.Get(id)
	if ok && cur.Status == model.StatusConnected {
		// keep the live stream's status, only surface the failure
		m.reg.SetRuntime(id, func(rc *model.RemoteConnection) { rc.LastError = err.Error() })
		m.notify(NoticeError, cur, "read failed: "+err.Error())
	} else if ok {
		m.fail(id, err.Error())
	}
	m.signal()
	var te *apperr.TransportError
	if errors.As(err, &te) {
		return transport.ReadResult{}, err
	}
	return transport.ReadResult{}, apperr.NewTransportError("read", id, err)
}

// Activate selects id for display. It returns false for unknown ids and
// leaves the current view untouched.
func (m *Manager) Activate(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reg.Get(id); !ok {
		return false
	}
	m.proj.set(id, m.buf.Joined(id))
	m.signal()
	return true
}

// Resolve maps an event to its connection: the echoed id when present,
// otherwise the live or pending resource path.
func (m *Manager) Resolve(connectionID, resourcePath string) (string, bool) {
	if connectionID != "" {
		if _, ok := m.reg.Get(connectionID); ok {
			return connectionID, true
		}
		return "", false
	}
	if id, ok := m.reg.FindByResourcePath(resourcePath); ok {
		return id, true
	}
	if resourcePath == "" {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.pending {
		if p == resourcePath {
			return id, true
		}
	}
	return "", false
}

func (m *Manager) ApplyStatus(id string, ev transport.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.current(id, ev.Epoch)
	if err != nil {
		return err
	}
	if !ev.Connected {
		msg := ev.Message
		if msg == "" {
			msg = "connection failed"
		}
		m.fail(id, msg)
		m.signal()
		return nil
	}
	path := ev.ResourcePath
	if path == "" {
		path = m.pending[id]
	}
	m.reg.SetRuntime(id, func(rc *model.RemoteConnection) {
		rc.Status = model.StatusConnected
		rc.Monitoring = true
		rc.LastError = ""
		rc.ResourcePath = path
	})
	m.stopTimer(id)
	delete(m.pending, id)
	m.notify(NoticeInfo, c, "connected")
	m.signal()
	return nil
}

func (m *Manager) ApplyStreamOpened(id string, ev transport.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.current(id, ev.Epoch); err != nil {
		return err
	}
	m.reg.SetRuntime(id, func(rc *model.RemoteConnection) {
		rc.Monitoring = true
		if ev.ResourcePath != "" {
			rc.ResourcePath = ev.ResourcePath
		}
	})
	m.signal()
	return nil
}

func (m *Manager) ApplyStreamClosed(id string, ev transport.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.current(id, ev.Epoch)
	if err != nil {
		return err
	}
	m.reg.SetMonitoring(id, false)
	if c.Monitoring {
		m.notify(NoticeInfo, c, "stream closed")
	}
	m.signal()
	return nil
}

// ApplyData appends a chunk. Chunks for connections that are neither
// Connecting nor Connected are treated as stale.
func (m *Manager) ApplyData(id string, ev transport.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.current(id, ev.Epoch)
	if err != nil {
		return err
	}
	if c.Status != model.StatusConnecting && c.Status != model.StatusConnected {
		return apperr.NewStaleEventError(id, ev.Epoch, m.epochs[id])
	}
	m.buf.Append(id, ev.Content)
	if m.proj.refresh(id, m.buf.Joined(id)) {
		m.signal()
	}
	return nil
}

func (m *Manager) ApplyStreamError(id string, ev transport.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.current(id, ev.Epoch); err != nil {
		return err
	}
	msg := ev.Message
	if msg == "" {
		msg = "stream error"
	}
	m.fail(id, msg)
	m.signal()
	return nil
}

// current returns the record of id when epoch is zero (path-only events) or
// matches the latest command.
func (m *Manager) current(id string, epoch uint64) (model.RemoteConnection, error) {
	c, ok := m.reg.Get(id)
	if !ok {
		return c, apperr.NewNotFoundError("connection", id)
	}
	if want := m.epochs[id]; epoch != 0 && epoch != want {
		return c, apperr.NewStaleEventError(id, epoch, want)
	}
	return c, nil
}

// fail moves id to Error. Callers hold mu.
func (m *Manager) fail(id, msg string) {
	m.reg.SetRuntime(id, func(rc *model.RemoteConnection) {
		rc.Status = model.StatusError
		rc.Monitoring = false
		rc.LastError = msg
	})
	m.stopTimer(id)
	delete(m.pending, id)
	if c, ok := m.reg.Get(id); ok {
		logx.L().Warn("session: connection failed", zap.String("connection", c.Name), zap.String("error", msg))
		m.notify(NoticeError, c, msg)
	}
}

func (m *Manager) armTimer(id string, epoch uint64) {
	m.stopTimer(id)
	if m.timeout <= 0 || m.closed {
		return
	}
	m.timers[id] = time.AfterFunc(m.timeout, func() { m.onTimeout(id, epoch) })
}

func (m *Manager) stopTimer(id string) {
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) onTimeout(id string, epoch uint64) {
	m.mu.Lock()
	if m.closed || m.epochs[id] != epoch {
		m.mu.Unlock()
		return
	}
	c, ok := m.reg.Get(id)
	if !ok || c.Status != model.StatusConnecting {
		m.mu.Unlock()
		return
	}
	req, ok := m.stopTarget(id, c)
	delete(m.timers, id)
	delete(m.started, id)
	m.epochs[id]++
	m.fail(id, "connect timed out")
	m.signal()
	m.mu.Unlock()

	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := m.tr.StopStream(ctx, req); err != nil {
		logx.L().Debug("session: stop after timeout", zap.String("connection", c.Name), zap.Error(err))
	}
}

func (m *Manager) notify(level NoticeLevel, c model.RemoteConnection, msg string) {
	n := Notice{Level: level, ConnectionID: c.ID, Name: c.Name, Message: msg, At: time.Now()}
	select {
	case m.notices <- n:
	default:
		logx.Debugf("session: notice dropped: %s", n)
	}
}

func (m *Manager) signal() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}
