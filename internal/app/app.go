// Package app assembles the store, registries, transports, bridge and
// session manager into one running instance.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"logscope/internal/ai"
	"logscope/internal/buffer"
	"logscope/internal/config"
	"logscope/internal/detect"
	"logscope/internal/formats"
	"logscope/internal/ingest"
	"logscope/internal/model"
	"logscope/internal/parse"
	"logscope/internal/registry"
	"logscope/internal/session"
	"logscope/internal/store"
	"logscope/internal/transport"
	"logscope/internal/transport/filetail"
	"logscope/internal/transport/olrickv"
	"logscope/internal/transport/redisq"
	"logscope/internal/transport/rqlitedb"
	"logscope/internal/transport/sshtail"
	"logscope/internal/transport/wsstream"
	"logscope/internal/util/logx"
)

type App struct {
	Cfg         *config.Config
	Store       store.Store
	Connections *registry.Registry
	Formats     *formats.Registry
	Buffers     *buffer.Store
	Session     *session.Manager
	Bridge      *ingest.Bridge
	AI          *ai.OpenAIClient

	ch      *transport.Channel
	mux     *transport.Mux
	drivers []interface{ Close() }
}

// New opens the store and starts the bridge. Close releases everything.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Store: st}
	if err := a.init(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	logx.L().Info("app: ready",
		zap.String("store", cfg.StorePath),
		zap.String("backend", cfg.StoreBackend),
		zap.Int("connections", len(a.Connections.List(""))),
		zap.Int("formats", len(a.Formats.List())))
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	var err error
	if a.Connections, err = registry.New(a.Store); err != nil {
		return err
	}
	if a.Formats, err = formats.New(a.Store); err != nil {
		return err
	}
	if a.Cfg.Format != "" {
		def, ok := a.Formats.Lookup(a.Cfg.Format)
		if !ok {
			return fmt.Errorf("unknown format %q", a.Cfg.Format)
		}
		if err := a.Formats.SetActive(def.ID); err != nil {
			return err
		}
	}

	a.ch = transport.NewChannel(0)
	ft := filetail.New(a.ch)
	ssh := sshtail.New(a.ch)
	rq := redisq.New(a.ch)
	kv := olrickv.New(a.ch)
	rel := rqlitedb.New(a.ch)
	ws := wsstream.New(a.ch)
	a.drivers = []interface{ Close() }{ft, ssh, rq, kv, rel, ws}

	mux := transport.NewMux()
	mux.Register(model.KindLocalFile, ft)
	mux.Register(model.KindShellSession, ssh)
	mux.Register(model.KindMessageQueue, rq)
	mux.Register(model.KindKeyValueStore, kv)
	mux.Register(model.KindRelationalStore, rel)
	mux.Register(model.KindCustom, ws)
	a.mux = mux

	a.Buffers = buffer.New(a.Cfg.BufferLines)
	a.Session = session.New(a.Connections, a.Buffers, mux, session.Options{
		ConnectTimeout: time.Duration(a.Cfg.ConnectTimeoutSec) * time.Second,
	})
	a.Bridge = ingest.NewBridge(a.ch.Events(), a.Session)
	if err := a.Bridge.Start(ctx); err != nil {
		return err
	}
	if !a.Cfg.Offline {
		a.AI = ai.NewOpenAIClient(a.Cfg.OpenAIKey(), a.Cfg.OpenAIBase, a.Cfg.OpenAIModel,
			time.Duration(a.Cfg.OpenAITimeoutSec)*time.Second)
	}
	return nil
}

// Close stops streams, then the bridge, then the store. Safe on a partially
// built App.
func (a *App) Close() error {
	if a.Session != nil {
		a.Session.Close()
	}
	for _, d := range a.drivers {
		d.Close()
	}
	if a.ch != nil {
		a.ch.Close()
	}
	if a.Bridge != nil {
		a.Bridge.Close()
		st := a.Bridge.Stats()
		logx.L().Info("app: bridge closed",
			zap.Uint64("routed", st.Routed), zap.Uint64("dropped", st.Dropped), zap.Uint64("stale", st.Stale))
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Streamable reports whether connections of kind can be connected and read.
// Search-index and document-store records can be saved but have no driver.
func (a *App) Streamable(kind model.TransportKind) bool {
	return a.mux != nil && a.mux.Has(kind)
}

// Entries parses the buffer of id with the active format.
func (a *App) Entries(id string) []model.LogEntry {
	c, _ := a.Connections.Get(id)
	return parse.ParseSource(a.Buffers.Joined(id), c.Name, a.Formats.ActiveID(), a.Formats)
}

// ParseText parses arbitrary text with the active format.
func (a *App) ParseText(text, source string) []model.LogEntry {
	return parse.ParseSource(text, source, a.Formats.ActiveID(), a.Formats)
}

// FileConnection returns the local-file connection for path, creating it
// when missing.
func (a *App) FileConnection(path string) (model.RemoteConnection, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return model.RemoteConnection{}, err
	}
	for _, c := range a.Connections.List("") {
		if c.Kind == model.KindLocalFile && c.TargetPath == abs {
			return c, nil
		}
	}
	return a.Connections.Add(model.RemoteConnection{
		Name:       filepath.Base(abs),
		Kind:       model.KindLocalFile,
		TargetPath: abs,
	})
}

// ReadOnce fetches the connection called name and parses the result.
func (a *App) ReadOnce(ctx context.Context, name string) ([]model.LogEntry, transport.ReadResult, error) {
	c, ok := a.Connections.FindByName(name)
	if !ok {
		return nil, transport.ReadResult{}, fmt.Errorf("no connection named %q", name)
	}
	res, err := a.Session.ReadOnce(ctx, c.ID)
	if err != nil {
		return nil, res, err
	}
	return a.ParseText(res.Content, c.Name), res, nil
}

// SuggestFormat activates the best matching format for sample when no
// format is active yet.
func (a *App) SuggestFormat(sample []string) (detect.Guess, bool) {
	if a.Formats.ActiveID() != "" {
		return detect.Guess{}, false
	}
	g := detect.Suggest(sample, a.Formats.List())
	if !g.Found() {
		return g, false
	}
	if err := a.Formats.SetActive(g.FormatID); err != nil {
		logx.Warnf("app: activate suggested format: %v", err)
		return g, false
	}
	logx.Infof("app: detected format %s (%.0f%%)", g.Name, g.Confidence*100)
	return g, true
}

// DraftFormat asks the AI client for a definition and saves it.
func (a *App) DraftFormat(ctx context.Context, sample []string) (model.LogFormatDefinition, error) {
	if a.AI == nil || !a.AI.Enabled() {
		return model.LogFormatDefinition{}, ai.ErrDisabled
	}
	def, err := a.AI.DraftFormat(ctx, sample)
	if err != nil {
		return def, err
	}
	id, err := a.Formats.Add(def)
	if err != nil {
		return def, err
	}
	def.ID = id
	return def, nil
}
