package sshtail

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/transport"
)

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"/var/log/app.log":      "'/var/log/app.log'",
		"/tmp/it's here.log":    `'/tmp/it'\''s here.log'`,
		"/logs/$(rm -rf x).log": "'/logs/$(rm -rf x).log'",
	}
	for in, want := range tests {
		assert.Equal(t, want, shellQuote(in))
	}
}

func TestAuthMethods(t *testing.T) {
	_, err := authMethods(model.Credential{Username: "u", AuthType: model.AuthPassword, Password: "pw"})
	require.NoError(t, err)

	_, err = authMethods(model.Credential{Username: "u"})
	require.Error(t, err)

	_, err = authMethods(model.Credential{Username: "u", AuthType: model.AuthKey, KeyFile: filepath.Join(t.TempDir(), "missing")})
	require.ErrorContains(t, err, "read key file")
}

func TestConnectWithBadKeyIsSynchronousTransportError(t *testing.T) {
	d := New(transport.NewChannel(4))
	defer d.Close()
	err := d.ConnectAndMonitor(context.Background(), transport.MonitorRequest{
		ConnectionID: "c1",
		Conn: model.RemoteConnection{
			Kind: model.KindShellSession, Host: "127.0.0.1",
			Credential: model.Credential{Username: "u", AuthType: model.AuthKey, KeyFile: "/nonexistent/key"},
		},
	})
	assert.True(t, apperr.IsTransport(err))
}

func TestUnreachableHostReportsFailedStatus(t *testing.T) {
	// grab a free port and close it so the dial is refused
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, p, _ := net.SplitHostPort(l.Addr().String())
	require.NoError(t, l.Close())
	port, _ := strconv.Atoi(p)

	ch := transport.NewChannel(4)
	d := New(ch)
	d.DialTimeout = 2 * time.Second
	defer d.Close()

	require.NoError(t, d.ConnectAndMonitor(context.Background(), transport.MonitorRequest{
		ConnectionID: "c1",
		Epoch:        7,
		Conn: model.RemoteConnection{
			Kind: model.KindShellSession, Host: "127.0.0.1", Port: port,
			Credential: model.Credential{Username: "u", AuthType: model.AuthPassword, Password: "pw"},
			TargetPath: "/var/log/app.log",
		},
	}))

	select {
	case ev := <-ch.Events():
		assert.Equal(t, transport.EventConnectionStatus, ev.Kind)
		assert.False(t, ev.Connected)
		assert.Equal(t, uint64(7), ev.Epoch)
		assert.Equal(t, "/var/log/app.log", ev.ResourcePath)
	case <-time.After(5 * time.Second):
		t.Fatal("no status event")
	}
}

func TestStopIsScopedToConnection(t *testing.T) {
	d := New(transport.NewChannel(1))
	defer d.Close()
	ctxA, releaseA := d.streams.Start(d.base, transport.StreamKey("a", "/var/log/app.log"))
	defer releaseA()
	ctxB, releaseB := d.streams.Start(d.base, transport.StreamKey("b", "/var/log/app.log"))
	defer releaseB()

	require.NoError(t, d.StopStream(context.Background(), transport.StopRequest{
		ConnectionID: "b", Kind: model.KindShellSession, Host: "web", ResourcePath: "/var/log/app.log",
	}))
	assert.NoError(t, ctxA.Err())
	assert.Error(t, ctxB.Err())
}
