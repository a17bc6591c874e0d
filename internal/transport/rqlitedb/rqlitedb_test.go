package rqlitedb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/transport"
)

func TestParseResource(t *testing.T) {
	tg, err := parseResource("app_logs.line")
	require.NoError(t, err)
	assert.Equal(t, target{table: "app_logs", column: "line"}, tg)
	assert.Contains(t, tg.query(), "FROM app_logs WHERE rowid > ?")

	for _, bad := range []string{"logs", "logs.", ".line", "logs;drop.x", "logs.line--"} {
		_, err := parseResource(bad)
		assert.Error(t, err, bad)
	}
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "http://db:4001/", dsn(model.RemoteConnection{Host: "db"}))
	got := dsn(model.RemoteConnection{Host: "db", Port: 4005, Credential: model.Credential{Username: "u", Password: "p w"}})
	assert.Equal(t, "http://u:p%20w@db:4005/", got)
}

func TestStopIsScopedToConnection(t *testing.T) {
	d := New(transport.NewChannel(1))
	defer d.Close()
	ctxA, releaseA := d.streams.Start(d.base, transport.StreamKey("a", "logs.line"))
	defer releaseA()
	ctxB, releaseB := d.streams.Start(d.base, transport.StreamKey("b", "logs.line"))
	defer releaseB()

	require.NoError(t, d.StopStream(context.Background(), transport.StopRequest{
		ConnectionID: "a", Kind: model.KindRelationalStore, Host: "db", ResourcePath: "logs.line",
	}))
	assert.Error(t, ctxA.Err())
	assert.NoError(t, ctxB.Err(), "same table on the same server belongs to another connection")
}

func TestConnectRejectsBadResource(t *testing.T) {
	d := New(transport.NewChannel(1))
	defer d.Close()
	err := d.ConnectAndMonitor(context.Background(), transport.MonitorRequest{
		ConnectionID: "db", Conn: model.RemoteConnection{Kind: model.KindRelationalStore, Host: "db", TargetPath: "logs"},
	})
	assert.True(t, apperr.IsTransport(err))
}
