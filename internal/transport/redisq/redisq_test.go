package redisq

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/transport"
)

func closedPort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, p, _ := net.SplitHostPort(l.Addr().String())
	require.NoError(t, l.Close())
	n, _ := strconv.Atoi(p)
	return n
}

func TestOptions(t *testing.T) {
	o := options(model.RemoteConnection{Host: "cache", Credential: model.Credential{Username: "u", Password: "p"}})
	assert.Equal(t, "cache:6379", o.Addr)
	assert.Equal(t, "u", o.Username)
	assert.Equal(t, "p", o.Password)
}

func TestMissingChannelIsRejected(t *testing.T) {
	d := New(transport.NewChannel(1))
	defer d.Close()
	err := d.ConnectAndMonitor(context.Background(), transport.MonitorRequest{
		ConnectionID: "q", Conn: model.RemoteConnection{Kind: model.KindMessageQueue, Host: "cache"},
	})
	assert.True(t, apperr.IsTransport(err))
}

func TestUnreachableBrokerReportsFailedStatus(t *testing.T) {
	ch := transport.NewChannel(4)
	d := New(ch)
	defer d.Close()
	conn := model.RemoteConnection{Kind: model.KindMessageQueue, Host: "127.0.0.1", Port: closedPort(t), TargetPath: "app-logs"}

	require.NoError(t, d.ConnectAndMonitor(context.Background(), transport.MonitorRequest{ConnectionID: "q", Epoch: 2, Conn: conn}))
	select {
	case ev := <-ch.Events():
		assert.Equal(t, transport.EventConnectionStatus, ev.Kind)
		assert.False(t, ev.Connected)
		assert.Equal(t, "app-logs", ev.ResourcePath)
	case <-time.After(10 * time.Second):
		t.Fatal("no status event")
	}

	_, err := d.ReadOnce(context.Background(), transport.ReadRequest{ConnectionID: "q", Conn: conn})
	assert.True(t, apperr.IsTransport(err))
}
