// Package sshtail streams remote files over SSH by running `tail -f` in a
// session, and reads them once with `cat`.
package sshtail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

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

	DialTimeout time.Duration
	TailLines   int // lines of history `tail` prints before following
}

func New(ch *transport.Channel) *Driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Driver{
		ch:          ch,
		streams:     transport.NewStreams(),
		base:        ctx,
		cancel:      cancel,
		DialTimeout: 15 * time.Second,
		TailLines:   100,
	}
}

func (d *Driver) Close() {
	d.streams.StopAll()
	d.cancel()
}

func port(c model.RemoteConnection) int {
	if c.Port > 0 {
		return c.Port
	}
	return 22
}

func (d *Driver) ConnectAndMonitor(_ context.Context, req transport.MonitorRequest) error {
	path := req.ResourcePath
	if path == "" {
		path = req.Conn.TargetPath
	}
	cfg, err := clientConfig(req.Conn.Credential, d.DialTimeout)
	if err != nil {
		return apperr.NewTransportError("connect", req.ConnectionID, err)
	}
	ctx, release := d.streams.Start(d.base, transport.StreamKey(req.ConnectionID, path))
	em := d.ch.For(req.ConnectionID, req.Epoch, path)
	go func() {
		defer release()
		d.stream(ctx, req.Conn, cfg, path, em)
	}()
	return nil
}

func (d *Driver) stream(ctx context.Context, c model.RemoteConnection, cfg *ssh.ClientConfig, path string, em transport.Emitter) {
	log := logx.L().With(zap.String("host", c.Host), zap.String("path", path))
	client, err := dial(ctx, c.Host, port(c), cfg)
	if err != nil {
		em.Status(false, err.Error())
		return
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		em.Status(false, fmt.Sprintf("open session: %v", err))
		return
	}
	defer sess.Close()
	stdout, err := sess.StdoutPipe()
	if err != nil {
		em.Status(false, err.Error())
		return
	}
	var stderr bytes.Buffer
	sess.Stderr = &stderr

	cmd := fmt.Sprintf("tail -n %d -f %s", d.TailLines, shellQuote(path))
	if err := sess.Start(cmd); err != nil {
		em.Status(false, fmt.Sprintf("start tail: %v", err))
		return
	}
	log.Info("sshtail: streaming")
	em.Status(true, "")
	em.Opened()

	// Closing the session unblocks the scanner when the stream is stopped.
	go func() {
		<-ctx.Done()
		_ = sess.Close()
	}()

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		em.Data(sc.Text())
	}
	waitErr := sess.Wait()
	if ctx.Err() != nil {
		em.Closed()
		return
	}
	switch {
	case sc.Err() != nil:
		em.Error(sc.Err())
	case waitErr != nil:
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = waitErr.Error()
		}
		em.Error(errors.New(msg))
	}
	log.Info("sshtail: stream ended")
	em.Closed()
}

func (d *Driver) StopStream(_ context.Context, req transport.StopRequest) error {
	if !d.streams.Stop(transport.StreamKey(req.ConnectionID, req.ResourcePath)) {
		logx.Debugf("sshtail: no stream for %s on %s", req.ResourcePath, req.Host)
	}
	return nil
}

func (d *Driver) ReadOnce(ctx context.Context, req transport.ReadRequest) (transport.ReadResult, error) {
	path := req.ResourcePath
	if path == "" {
		path = req.Conn.TargetPath
	}
	fail := func(err error) (transport.ReadResult, error) {
		return transport.ReadResult{}, apperr.NewTransportError("read", req.ConnectionID, err)
	}
	cfg, err := clientConfig(req.Conn.Credential, d.DialTimeout)
	if err != nil {
		return fail(err)
	}
	client, err := dial(ctx, req.Conn.Host, port(req.Conn), cfg)
	if err != nil {
		return fail(err)
	}
	defer client.Close()
	sess, err := client.NewSession()
	if err != nil {
		return fail(err)
	}
	defer sess.Close()
	out, err := sess.Output("cat " + shellQuote(path))
	if err != nil {
		return fail(err)
	}
	content := strings.TrimRight(string(out), "\n")
	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	return transport.ReadResult{Content: content, TotalLines: transport.CountLines(content), FileName: name}, nil
}

func dial(ctx context.Context, host string, port int, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	nd := net.Dialer{Timeout: cfg.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func clientConfig(cred model.Credential, timeout time.Duration) (*ssh.ClientConfig, error) {
	auth, err := authMethods(cred)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            cred.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}, nil
}

func authMethods(cred model.Credential) ([]ssh.AuthMethod, error) {
	if cred.AuthType == model.AuthKey || (cred.KeyFile != "" && cred.Password == "") {
		pem, err := os.ReadFile(expandHome(cred.KeyFile))
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		var signer ssh.Signer
		if cred.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(cred.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(pem)
		}
		if err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if cred.Password == "" {
		return nil, errors.New("no password or key file")
	}
	return []ssh.AuthMethod{ssh.Password(cred.Password)}, nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + p[1:]
		}
	}
	return p
}

// shellQuote wraps s in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
