// Package rqlitedb follows log rows appended to an rqlite table. The resource
// is "<table>.<column>"; rows are read in rowid order.
package rqlitedb

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rqlite/gorqlite"
	"go.uber.org/zap"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/transport"
	"logscope/internal/util/logx"
)

const batchSize = 500

var ident = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

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

type target struct {
	table  string
	column string
}

// parseResource validates "table.column". Both parts are interpolated into
// SQL so only plain identifiers are accepted.
func parseResource(res string) (target, error) {
	table, column, ok := strings.Cut(res, ".")
	if !ok || !ident.MatchString(table) || !ident.MatchString(column) {
		return target{}, fmt.Errorf("resource %q must be <table>.<column>", res)
	}
	return target{table: table, column: column}, nil
}

func (t target) query() string {
	return fmt.Sprintf(`SELECT rowid, COALESCE(%s, '') FROM %s WHERE rowid > ? ORDER BY rowid LIMIT %d`, t.column, t.table, batchSize)
}

func dsn(c model.RemoteConnection) string {
	p := c.Port
	if p == 0 {
		p = 4001
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(c.Host, strconv.Itoa(p)), Path: "/"}
	if c.Credential.Username != "" {
		u.User = url.UserPassword(c.Credential.Username, c.Credential.Password)
	}
	return u.String()
}

func resource(c model.RemoteConnection, path string) string {
	if path != "" {
		return path
	}
	return c.TargetPath
}

// fetch returns the rows after rowid last and the highest rowid seen.
func fetch(conn *gorqlite.Connection, t target, last int64) ([]string, int64, error) {
	qr, err := conn.QueryOneParameterized(gorqlite.ParameterizedStatement{
		Query:     t.query(),
		Arguments: []interface{}{last},
	})
	if err != nil {
		return nil, last, err
	}
	var lines []string
	for qr.Next() {
		var (
			id   int64
			line string
		)
		if err := qr.Scan(&id, &line); err != nil {
			return lines, last, err
		}
		lines = append(lines, line)
		if id > last {
			last = id
		}
	}
	return lines, last, nil
}

func (d *Driver) ConnectAndMonitor(_ context.Context, req transport.MonitorRequest) error {
	res := resource(req.Conn, req.ResourcePath)
	t, err := parseResource(res)
	if err != nil {
		return apperr.NewTransportError("connect", req.ConnectionID, err)
	}
	ctx, release := d.streams.Start(d.base, transport.StreamKey(req.ConnectionID, res))
	em := d.ch.For(req.ConnectionID, req.Epoch, res)
	go func() {
		defer release()
		d.poll(ctx, req.Conn, t, em)
	}()
	return nil
}

func (d *Driver) poll(ctx context.Context, c model.RemoteConnection, t target, em transport.Emitter) {
	conn, err := gorqlite.Open(dsn(c))
	if err != nil {
		em.Status(false, err.Error())
		return
	}
	defer conn.Close()

	var last int64
	drain := func() error {
		for {
			lines, next, err := fetch(conn, t, last)
			for _, l := range lines {
				em.Data(l)
			}
			last = next
			if err != nil {
				return err
			}
			if len(lines) < batchSize || ctx.Err() != nil {
				return nil
			}
		}
	}
	if err := drain(); err != nil {
		em.Status(false, err.Error())
		return
	}
	logx.L().Info("rqlitedb: polling", zap.String("host", c.Host), zap.String("table", t.table), zap.Int64("rowid", last))
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
			if err := drain(); err != nil {
				em.Error(err)
			}
		}
	}
}

func (d *Driver) StopStream(_ context.Context, req transport.StopRequest) error {
	if !d.streams.Stop(transport.StreamKey(req.ConnectionID, req.ResourcePath)) {
		logx.Debugf("rqlitedb: no stream for %s", req.ResourcePath)
	}
	return nil
}

func (d *Driver) ReadOnce(_ context.Context, req transport.ReadRequest) (transport.ReadResult, error) {
	res := resource(req.Conn, req.ResourcePath)
	fail := func(err error) (transport.ReadResult, error) {
		return transport.ReadResult{}, apperr.NewTransportError("read", req.ConnectionID, err)
	}
	t, err := parseResource(res)
	if err != nil {
		return fail(err)
	}
	conn, err := gorqlite.Open(dsn(req.Conn))
	if err != nil {
		return fail(err)
	}
	defer conn.Close()

	var all []string
	var last int64
	for {
		lines, next, err := fetch(conn, t, last)
		if err != nil {
			return fail(err)
		}
		all = append(all, lines...)
		if len(lines) < batchSize {
			break
		}
		last = next
	}
	content := strings.Join(all, "\n")
	return transport.ReadResult{Content: content, TotalLines: transport.CountLines(content), FileName: res}, nil
}
