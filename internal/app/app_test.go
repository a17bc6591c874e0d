package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscope/internal/config"
	"logscope/internal/model"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		StorePath:         filepath.Join(dir, "state"),
		StoreBackend:      backend,
		BufferLines:       100,
		ConnectTimeoutSec: 5,
		Offline:           true,
	}
}

func TestFollowLocalFileEndToEnd(t *testing.T) {
	cfg := testConfig(t, "file")
	cfg.Format = "standard-log"
	logPath := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(logPath, []byte(
		"2024-01-01 10:00:00 [INFO] started\n"+
			"2024-01-01 10:00:01 [ERROR] failed\n"+
			"  at worker.run\n"), 0o644))

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	c, err := a.FileConnection(logPath)
	require.NoError(t, err)
	again, err := a.FileConnection(logPath)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	require.NoError(t, a.Session.Connect(context.Background(), c.ID))
	require.True(t, a.Session.Activate(c.ID))

	require.Eventually(t, func() bool {
		return strings.Contains(a.Session.View().Display, "at worker.run")
	}, 5*time.Second, 10*time.Millisecond)

	got, _ := a.Connections.Get(c.ID)
	assert.Equal(t, model.StatusConnected, got.Status)
	assert.True(t, got.Monitoring)

	entries := a.Entries(c.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, "ERROR", entries[1].Level)
	assert.Equal(t, 1, entries[1].Continuation)
	assert.Equal(t, "app.log", entries[1].Source)

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("2024-01-01 10:00:02 [WARN] appended\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Eventually(t, func() bool {
		return strings.Contains(a.Session.View().Display, "appended")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Session.Disconnect(context.Background(), c.ID))
	got, _ = a.Connections.Get(c.ID)
	assert.Equal(t, model.StatusDisconnected, got.Status)
	assert.Empty(t, a.Session.View().Display)
}

func TestReadOnceByName(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	logPath := filepath.Join(t.TempDir(), "svc.log")
	require.NoError(t, os.WriteFile(logPath, []byte(
		"2023-04-08 16:40:01,279 - app.worker - WARNING - queue is almost full\n"), 0o644))

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.FileConnection(logPath)
	require.NoError(t, err)

	_, _, err = a.ReadOnce(context.Background(), "nope")
	assert.Error(t, err)

	entries, res, err := a.ReadOnce(context.Background(), "svc.log")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalLines)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Level, "no active format yet")

	g, ok := a.SuggestFormat(strings.Split(res.Content, "\n"))
	require.True(t, ok)
	assert.Equal(t, "python-logging", g.FormatID)
	entries = a.ParseText(res.Content, "svc.log")
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "app.worker", entries[0].Logger)
}

func TestStateSurvivesRestart(t *testing.T) {
	cfg := testConfig(t, "file")
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	_, err = a.Connections.Add(model.RemoteConnection{Name: "web", Kind: model.KindMessageQueue, Host: "cache", TargetPath: "logs"})
	require.NoError(t, err)
	require.NoError(t, a.Formats.SetActive("spring-boot"))
	require.NoError(t, a.Close())

	b, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()
	c, ok := b.Connections.FindByName("WEB")
	require.True(t, ok)
	assert.Equal(t, model.StatusDisconnected, c.Status)
	assert.Equal(t, "spring-boot", b.Formats.ActiveID())
}

func TestUnknownFormat(t *testing.T) {
	cfg := testConfig(t, "file")
	cfg.Format = "no-such-format"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestStreamableKinds(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, "file"))
	require.NoError(t, err)
	defer a.Close()
	for _, k := range model.Kinds {
		want := k != model.KindSearchIndex && k != model.KindDocumentStore
		assert.Equal(t, want, a.Streamable(k), string(k))
	}
}
