// Package filetail streams files on the local machine.
package filetail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nxadm/tail"
	"go.uber.org/zap"

	"logscope/internal/apperr"
	"logscope/internal/transport"
	"logscope/internal/util/logx"
)

// DefaultBacklogBytes is how much of an existing file is replayed before
// following, roughly what `tail -f` shows.
const DefaultBacklogBytes = 8 * 1024

type Driver struct {
	ch      *transport.Channel
	streams *transport.Streams
	base    context.Context
	cancel  context.CancelFunc

	BacklogBytes int64 // replayed on connect; 0 = start at end of file
	Poll         bool  // poll instead of inotify, for network filesystems
	MaxReadBytes int64 // ReadOnce reads only the last N bytes; 0 = whole file
}

func New(ch *transport.Channel) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{ch: ch, streams: transport.NewStreams(), base: ctx, cancel: cancel, BacklogBytes: DefaultBacklogBytes}
}

func (d *Driver) Close() {
	d.streams.StopAll()
	d.cancel()
}

func resourcePath(req transport.MonitorRequest) string {
	if req.ResourcePath != "" {
		return req.ResourcePath
	}
	return req.Conn.TargetPath
}

// ConnectAndMonitor starts following the file. A file that cannot be opened
// is reported as a failed connection-status event.
func (d *Driver) ConnectAndMonitor(_ context.Context, req transport.MonitorRequest) error {
	path := resourcePath(req)
	if path == "" {
		return apperr.NewTransportError("connect", req.ConnectionID, fmt.Errorf("no file path"))
	}
	ctx, release := d.streams.Start(d.base, transport.StreamKey(req.ConnectionID, path))
	em := d.ch.For(req.ConnectionID, req.Epoch, path)
	go func() {
		defer release()
		d.follow(ctx, path, em)
	}()
	return nil
}

func (d *Driver) follow(ctx context.Context, path string, em transport.Emitter) {
	offset, err := lineOffset(path, d.BacklogBytes)
	if err != nil {
		em.Status(false, err.Error())
		return
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
		Poll:      d.Poll,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
	})
	if err != nil {
		em.Status(false, err.Error())
		return
	}
	defer t.Cleanup()

	logx.L().Info("filetail: following", zap.String("path", path), zap.Int64("offset", offset))
	em.Status(true, "")
	em.Opened()
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			em.Closed()
			return
		case l, ok := <-t.Lines:
			if !ok {
				em.Closed()
				return
			}
			if l.Err != nil {
				em.Error(l.Err)
				continue
			}
			em.Data(l.Text)
		}
	}
}

// lineOffset returns the offset of the first full line within the last
// backlog bytes of path. With backlog 0 it is the end of the file.
func lineOffset(path string, backlog int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if st.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	size := st.Size()
	if backlog <= 0 {
		return size, nil
	}
	if size <= backlog {
		return 0, nil
	}
	start := size - backlog
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return 0, err
	}
	// drop partial first line
	partial, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, err
	}
	return start + int64(len(partial)), nil
}

func (d *Driver) StopStream(_ context.Context, req transport.StopRequest) error {
	if !d.streams.Stop(transport.StreamKey(req.ConnectionID, req.ResourcePath)) {
		logx.Debugf("filetail: no stream for %s", req.ResourcePath)
	}
	return nil
}

func (d *Driver) ReadOnce(_ context.Context, req transport.ReadRequest) (transport.ReadResult, error) {
	path := req.ResourcePath
	if path == "" {
		path = req.Conn.TargetPath
	}
	res, err := readFile(path, d.MaxReadBytes)
	if err != nil {
		return transport.ReadResult{}, apperr.NewTransportError("read", req.ConnectionID, err)
	}
	return res, nil
}

// Open reads a whole local file for one-shot viewing.
func Open(path string) (transport.ReadResult, error) {
	return readFile(path, 0)
}

func readFile(path string, maxBytes int64) (transport.ReadResult, error) {
	start, err := lineOffset(path, maxBytes)
	if err != nil {
		return transport.ReadResult{}, err
	}
	if maxBytes <= 0 {
		start = 0
	}
	f, err := os.Open(path)
	if err != nil {
		return transport.ReadResult{}, err
	}
	defer f.Close()
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return transport.ReadResult{}, err
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return transport.ReadResult{}, err
	}
	content := strings.TrimRight(string(b), "\n")
	return transport.ReadResult{
		Content:    content,
		TotalLines: transport.CountLines(content),
		FileName:   filepath.Base(path),
	}, nil
}
