// Package olrickv follows log lines stored as entries of an Olric DMap. The
// resource is "<dmap>" or "<dmap>/<key regex>"; new keys are picked up by
// polling and emitted in key order.
package olrickv

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	olriclib "github.com/olric-data/olric"
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

	PollInterval time.Duration
}

func New(ch *transport.Channel) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{ch: ch, streams: transport.NewStreams(), base: ctx, cancel: cancel, PollInterval: 2 * time.Second}
}

func (d *Driver) Close() {
	d.streams.StopAll()
	d.cancel()
}

func server(c model.RemoteConnection) string {
	p := c.Port
	if p == 0 {
		p = 3320
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(p))
}

// parseResource splits "dmap/match" into its parts.
func parseResource(res string) (dmap, match string, err error) {
	dmap, match, _ = strings.Cut(res, "/")
	if dmap == "" {
		return "", "", fmt.Errorf("resource %q has no dmap name", res)
	}
	return dmap, match, nil
}

func resource(c model.RemoteConnection, path string) string {
	if path != "" {
		return path
	}
	return c.TargetPath
}

type session struct {
	client olriclib.Client
	dm     olriclib.DMap
	match  string
}

func open(c model.RemoteConnection, res string) (*session, error) {
	name, match, err := parseResource(res)
	if err != nil {
		return nil, err
	}
	client, err := olriclib.NewClusterClient([]string{server(c)})
	if err != nil {
		return nil, fmt.Errorf("failed to create Olric cluster client: %w", err)
	}
	dm, err := client.NewDMap(name)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("failed to create DMap: %w", err)
	}
	return &session{client: client, dm: dm, match: match}, nil
}

func (s *session) close() { _ = s.client.Close(context.Background()) }

func (s *session) keys(ctx context.Context) ([]string, error) {
	var (
		it  olriclib.Iterator
		err error
	)
	if s.match != "" {
		it, err = s.dm.Scan(ctx, olriclib.Match(s.match))
	} else {
		it, err = s.dm.Scan(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	defer it.Close()
	var keys []string
	for it.Next() {
		keys = append(keys, it.Key())
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *session) value(ctx context.Context, key string) (string, error) {
	gr, err := s.dm.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return gr.String()
}

func (d *Driver) ConnectAndMonitor(_ context.Context, req transport.MonitorRequest) error {
	res := resource(req.Conn, req.ResourcePath)
	if _, _, err := parseResource(res); err != nil {
		return apperr.NewTransportError("connect", req.ConnectionID, err)
	}
	ctx, release := d.streams.Start(d.base, transport.StreamKey(req.ConnectionID, res))
	em := d.ch.For(req.ConnectionID, req.Epoch, res)
	go func() {
		defer release()
		d.poll(ctx, req.Conn, res, em)
	}()
	return nil
}

func (d *Driver) poll(ctx context.Context, c model.RemoteConnection, res string, em transport.Emitter) {
	s, err := open(c, res)
	if err != nil {
		em.Status(false, err.Error())
		return
	}
	defer s.close()

	seen := map[string]struct{}{}
	emitNew := func() error {
		keys, err := s.keys(ctx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				continue
			}
			v, err := s.value(ctx, k)
			if err != nil {
				// evicted between scan and get
				logx.Debugf("olrickv: get %s: %v", k, err)
				continue
			}
			seen[k] = struct{}{}
			em.Data(v)
		}
		return nil
	}

	if err := emitNew(); err != nil {
		em.Status(false, err.Error())
		return
	}
	logx.L().Info("olrickv: polling", zap.String("server", server(c)), zap.String("resource", res))
	em.Status(true, "")
	em.Opened()

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			em.Closed()
			return
		case <-ticker.C:
			if err := emitNew(); err != nil && ctx.Err() == nil {
				em.Error(err)
			}
		}
	}
}

func (d *Driver) StopStream(_ context.Context, req transport.StopRequest) error {
	d.streams.Stop(transport.StreamKey(req.ConnectionID, req.ResourcePath))
	return nil
}

func (d *Driver) ReadOnce(ctx context.Context, req transport.ReadRequest) (transport.ReadResult, error) {
	res := resource(req.Conn, req.ResourcePath)
	fail := func(err error) (transport.ReadResult, error) {
		return transport.ReadResult{}, apperr.NewTransportError("read", req.ConnectionID, err)
	}
	s, err := open(req.Conn, res)
	if err != nil {
		return fail(err)
	}
	defer s.close()
	keys, err := s.keys(ctx)
	if err != nil {
		return fail(err)
	}
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := s.value(ctx, k)
		if err != nil {
			continue
		}
		lines = append(lines, v)
	}
	content := strings.Join(lines, "\n")
	return transport.ReadResult{Content: content, TotalLines: transport.CountLines(content), FileName: res}, nil
}
