// Package wsstream receives log lines as websocket text frames, for custom
// sources that expose a streaming endpoint.
package wsstream

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/transport"
	"logscope/internal/util/logx"
)

type Driver struct {
	ch      *transport.Channel
	streams *transport.Streams
	base    context.Context
	cancel  context.CancelFunc
	dialer  *websocket.Dialer

	// ReadIdle ends a ReadOnce when no frame arrives for this long.
	ReadIdle time.Duration
}

func New(ch *transport.Channel) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		ch:       ch,
		streams:  transport.NewStreams(),
		base:     ctx,
		cancel:   cancel,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		ReadIdle: 2 * time.Second,
	}
}

func (d *Driver) Close() {
	d.streams.StopAll()
	d.cancel()
}

func endpoint(c model.RemoteConnection, path string) string {
	host := c.Host
	if c.Port > 0 {
		host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: "ws", Host: host}
	if p, q, ok := strings.Cut(path, "?"); ok {
		u.Path, u.RawQuery = p, q
	} else {
		u.Path = path
	}
	return u.String()
}

func header(c model.RemoteConnection) http.Header {
	h := http.Header{}
	if c.Credential.Username != "" {
		tok := base64.StdEncoding.EncodeToString([]byte(c.Credential.Username + ":" + c.Credential.Password))
		h.Set("Authorization", "Basic "+tok)
	}
	return h
}

func resource(c model.RemoteConnection, path string) string {
	if path != "" {
		return path
	}
	return c.TargetPath
}

func (d *Driver) ConnectAndMonitor(_ context.Context, req transport.MonitorRequest) error {
	path := resource(req.Conn, req.ResourcePath)
	ctx, release := d.streams.Start(d.base, transport.StreamKey(req.ConnectionID, path))
	em := d.ch.For(req.ConnectionID, req.Epoch, path)
	go func() {
		defer release()
		d.read(ctx, req.Conn, path, em)
	}()
	return nil
}

func (d *Driver) read(ctx context.Context, c model.RemoteConnection, path string, em transport.Emitter) {
	target := endpoint(c, path)
	conn, _, err := d.dialer.DialContext(ctx, target, header(c))
	if err != nil {
		em.Status(false, err.Error())
		return
	}
	defer conn.Close()
	logx.L().Info("wsstream: connected", zap.String("url", target))
	em.Status(true, "")
	em.Opened()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				em.Error(err)
			}
			em.Closed()
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		em.Data(string(data))
	}
}

func (d *Driver) StopStream(_ context.Context, req transport.StopRequest) error {
	d.streams.Stop(transport.StreamKey(req.ConnectionID, req.ResourcePath))
	return nil
}

// ReadOnce collects frames until the server closes or goes quiet.
func (d *Driver) ReadOnce(ctx context.Context, req transport.ReadRequest) (transport.ReadResult, error) {
	path := resource(req.Conn, req.ResourcePath)
	conn, _, err := d.dialer.DialContext(ctx, endpoint(req.Conn, path), header(req.Conn))
	if err != nil {
		return transport.ReadResult{}, apperr.NewTransportError("read", req.ConnectionID, err)
	}
	defer conn.Close()

	var lines []string
	for {
		_ = conn.SetReadDeadline(time.Now().Add(d.ReadIdle))
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if (errors.As(err, &ne) && ne.Timeout()) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			return transport.ReadResult{}, apperr.NewTransportError("read", req.ConnectionID, err)
		}
		lines = append(lines, strings.TrimRight(string(data), "\r\n"))
	}
	content := strings.Join(lines, "\n")
	return transport.ReadResult{Content: content, TotalLines: transport.CountLines(content), FileName: path}, nil
}
