// Package redisq streams log lines published on a Redis pub/sub channel.
// ReadOnce reads a Redis list of the same name instead.
package redisq

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
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
}

func New(ch *transport.Channel) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{ch: ch, streams: transport.NewStreams(), base: ctx, cancel: cancel}
}

func (d *Driver) Close() {
	d.streams.StopAll()
	d.cancel()
}

func addr(host string, port int) string {
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func options(c model.RemoteConnection) *redis.Options {
	return &redis.Options{
		Addr:     addr(c.Host, c.Port),
		Username: c.Credential.Username,
		Password: c.Credential.Password,
	}
}

func channelName(c model.RemoteConnection, path string) string {
	if path != "" {
		return path
	}
	return c.TargetPath
}

func (d *Driver) ConnectAndMonitor(_ context.Context, req transport.MonitorRequest) error {
	name := channelName(req.Conn, req.ResourcePath)
	if name == "" {
		return apperr.NewTransportError("connect", req.ConnectionID, fmt.Errorf("no channel name"))
	}
	ctx, release := d.streams.Start(d.base, transport.StreamKey(req.ConnectionID, name))
	em := d.ch.For(req.ConnectionID, req.Epoch, name)
	go func() {
		defer release()
		d.subscribe(ctx, req.Conn, name, em)
	}()
	return nil
}

func (d *Driver) subscribe(ctx context.Context, c model.RemoteConnection, name string, em transport.Emitter) {
	client := redis.NewClient(options(c))
	defer client.Close()

	ps := client.Subscribe(ctx, name)
	defer ps.Close()
	// The first reply confirms the subscription or carries the dial error.
	if _, err := ps.Receive(ctx); err != nil {
		em.Status(false, err.Error())
		return
	}
	logx.L().Info("redisq: subscribed", zap.String("addr", options(c).Addr), zap.String("channel", name))
	em.Status(true, "")
	em.Opened()

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			em.Closed()
			return
		case m, ok := <-msgs:
			if !ok {
				em.Closed()
				return
			}
			em.Data(m.Payload)
		}
	}
}

func (d *Driver) StopStream(_ context.Context, req transport.StopRequest) error {
	d.streams.Stop(transport.StreamKey(req.ConnectionID, req.ResourcePath))
	return nil
}

func (d *Driver) ReadOnce(ctx context.Context, req transport.ReadRequest) (transport.ReadResult, error) {
	name := channelName(req.Conn, req.ResourcePath)
	client := redis.NewClient(options(req.Conn))
	defer client.Close()
	items, err := client.LRange(ctx, name, 0, -1).Result()
	if err != nil {
		return transport.ReadResult{}, apperr.NewTransportError("read", req.ConnectionID, err)
	}
	content := strings.Join(items, "\n")
	return transport.ReadResult{Content: content, TotalLines: transport.CountLines(content), FileName: name}, nil
}
