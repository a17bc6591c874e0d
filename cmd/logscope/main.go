package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"logscope/internal/app"
	"logscope/internal/config"
	"logscope/internal/export"
	"logscope/internal/model"
	"logscope/internal/transport/filetail"
	"logscope/internal/ui"
	"logscope/internal/util/logx"
	"logscope/internal/version"
)

func main() {
	logx.SetLevelFromEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Println("logscope", version.String())
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logx.Infof("starting logscope %s: %s", version.String(), cfg.String())
	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup error:", err)
		os.Exit(1)
	}
	code := run(ctx, a, cfg)
	if err := a.Close(); err != nil {
		logx.Errorf("close: %v", err)
	}
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, a *app.App, cfg *config.Config) int {
	switch {
	case cfg.ReadOnce != "":
		entries, res, err := a.ReadOnce(ctx, cfg.ReadOnce)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read-once:", err)
			return 1
		}
		if _, ok := a.SuggestFormat(strings.Split(res.Content, "\n")); ok {
			entries = a.ParseText(res.Content, cfg.ReadOnce)
		}
		return emit(cfg, entries)

	case cfg.FilePath != "" && !cfg.Follow:
		res, err := filetail.Open(cfg.FilePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open:", err)
			return 1
		}
		if g, ok := a.SuggestFormat(strings.Split(res.Content, "\n")); ok {
			fmt.Fprintf(os.Stderr, "detected format %s (%.0f%%)\n", g.Name, g.Confidence*100)
		}
		if cfg.ExportFormat != "" {
			return emit(cfg, a.ParseText(res.Content, res.FileName))
		}
		// without export the file is shown through a local-file connection
		if code := followFile(ctx, a, cfg.FilePath); code != 0 {
			return code
		}

	case cfg.FilePath != "":
		if code := followFile(ctx, a, cfg.FilePath); code != 0 {
			return code
		}
	}

	if err := ui.Run(ctx, a); err != nil {
		logx.Errorf("logscope exited with error: %v", err)
		return 1
	}
	return 0
}

func followFile(ctx context.Context, a *app.App, path string) int {
	c, err := a.FileConnection(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "file:", err)
		return 1
	}
	if err := a.Session.Connect(ctx, c.ID); err != nil {
		fmt.Fprintln(os.Stderr, "follow:", err)
		return 1
	}
	a.Session.Activate(c.ID)
	return 0
}

// emit exports entries when --export is set, otherwise prints them.
func emit(cfg *config.Config, entries []model.LogEntry) int {
	if cfg.ExportFormat != "" {
		if err := export.Write(cfg.ExportFormat, cfg.ExportOut, entries); err != nil {
			fmt.Fprintln(os.Stderr, "export:", err)
			return 1
		}
		if cfg.ExportOut != "-" {
			fmt.Fprintf(os.Stderr, "exported %d entries to %s\n", len(entries), cfg.ExportOut)
		}
		return 0
	}
	for _, e := range entries {
		fmt.Println(e.Raw)
	}
	return 0
}
