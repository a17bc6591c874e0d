package filetail

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscope/internal/model"
	"logscope/internal/transport"
)

func next(t *testing.T, ch *transport.Channel) transport.Event {
	t.Helper()
	select {
	case ev := <-ch.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return transport.Event{}
	}
}

func monitor(path string) transport.MonitorRequest {
	return transport.MonitorRequest{
		ConnectionID: "c1",
		Epoch:        1,
		Conn:         model.RemoteConnection{Kind: model.KindLocalFile, TargetPath: path},
	}
}

func TestMissingFileReportsFailedStatus(t *testing.T) {
	ch := transport.NewChannel(8)
	d := New(ch)
	defer d.Close()

	require.NoError(t, d.ConnectAndMonitor(context.Background(), monitor(filepath.Join(t.TempDir(), "nope.log"))))
	ev := next(t, ch)
	assert.Equal(t, transport.EventConnectionStatus, ev.Kind)
	assert.False(t, ev.Connected)
	assert.NotEmpty(t, ev.Message)
	assert.Equal(t, "c1", ev.ConnectionID)
}

func TestFollowReplaysBacklogThenStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("first\nsecond\n"), 0o644))

	ch := transport.NewChannel(32)
	d := New(ch)
	d.Poll = true
	defer d.Close()

	require.NoError(t, d.ConnectAndMonitor(context.Background(), monitor(path)))
	ev := next(t, ch)
	require.Equal(t, transport.EventConnectionStatus, ev.Kind)
	require.True(t, ev.Connected, ev.Message)
	assert.Equal(t, path, ev.ResourcePath)
	assert.Equal(t, transport.EventStreamOpened, next(t, ch).Kind)
	assert.Equal(t, "first", next(t, ch).Content)
	assert.Equal(t, "second", next(t, ch).Content)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("third\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ev = next(t, ch)
	assert.Equal(t, transport.EventData, ev.Kind)
	assert.Equal(t, "third", ev.Content)

	require.NoError(t, d.StopStream(context.Background(), transport.StopRequest{ResourcePath: path}))
	assert.Equal(t, transport.EventStreamClosed, next(t, ch).Kind)
}

func TestLineOffsetDropsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")
	require.NoError(t, os.WriteFile(path, []byte("aaaaaaaaaa\nbbbb\ncccc\n"), 0o644))

	off, err := lineOffset(path, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(16), off, "should start at the beginning of cccc")

	off, err = lineOffset(path, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(21), off)
}

func TestOpenAndReadOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")
	content := strings.Repeat("line\n", 3)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "svc.log", res.FileName)
	assert.Equal(t, 3, res.TotalLines)
	assert.Equal(t, "line\nline\nline", res.Content)

	d := New(transport.NewChannel(1))
	defer d.Close()
	_, err = d.ReadOnce(context.Background(), transport.ReadRequest{Conn: model.RemoteConnection{TargetPath: path + ".missing"}})
	require.Error(t, err)
}

func TestTwoConnectionsOnOneFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	ch := transport.NewChannel(64)
	d := New(ch)
	d.Poll = true
	defer d.Close()

	a, b := monitor(path), monitor(path)
	b.ConnectionID = "c2"
	require.NoError(t, d.ConnectAndMonitor(context.Background(), a))
	require.NoError(t, d.ConnectAndMonitor(context.Background(), b))
	require.Eventually(t, func() bool { return d.streams.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, d.StopStream(context.Background(), transport.StopRequest{ConnectionID: "c1", ResourcePath: path}))
	require.Eventually(t, func() bool { return d.streams.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, d.StopStream(context.Background(), transport.StopRequest{ConnectionID: "c2", ResourcePath: path}))
	require.Eventually(t, func() bool { return d.streams.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
