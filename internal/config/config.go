package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

type Config struct {
	FilePath          string
	Follow            bool
	StorePath         string
	StoreBackend      string
	BufferLines       int
	ConnectTimeoutSec int
	Theme             Theme
	Offline           bool
	OpenAIModel       string
	OpenAIBase        string
	OpenAITimeoutSec  int
	Format            string
	ReadOnce          string
	ExportFormat      string
	ExportOut         string
	ConfigFile        string
	ShowVersion       bool
}

// fileConfig is the optional YAML document passed with --config. Only keys
// present in the file override defaults; explicit flags always win.
type fileConfig struct {
	Store struct {
		Path    *string `yaml:"path"`
		Backend *string `yaml:"backend"`
	} `yaml:"store"`
	BufferLines       *int    `yaml:"buffer_lines"`
	ConnectTimeoutSec *int    `yaml:"connect_timeout_sec"`
	Theme             *string `yaml:"theme"`
	Offline           *bool   `yaml:"offline"`
	Format            *string `yaml:"format"`
	OpenAI            struct {
		Model      *string `yaml:"model"`
		BaseURL    *string `yaml:"base_url"`
		TimeoutSec *int    `yaml:"timeout_sec"`
	} `yaml:"openai"`
}

func Load() (*Config, error) {
	return parse(os.Args[1:], os.Stderr)
}

func parse(args []string, out io.Writer) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("logscope", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.FilePath, "file", "", "path to a local log file")
	fs.BoolVar(&cfg.Follow, "follow", false, "follow the local file (tail -f) as a local-file connection")
	fs.StringVar(&cfg.StorePath, "store", getenvDefault("LOGSCOPE_STORE", defaultStorePath()), "path of the persisted connections/formats store")
	fs.StringVar(&cfg.StoreBackend, "store-backend", getenvDefault("LOGSCOPE_STORE_BACKEND", "file"), "store backend: file|sqlite")
	fs.IntVar(&cfg.BufferLines, "buffer-lines", getenvDefaultInt("LOGSCOPE_BUFFER_LINES", 5000), "max buffered chunks per connection (0=unbounded)")
	fs.IntVar(&cfg.ConnectTimeoutSec, "connect-timeout-sec", getenvDefaultInt("LOGSCOPE_CONNECT_TIMEOUT_SEC", 30), "seconds before a pending connect is marked as failed")
	theme := string(ThemeDark)
	fs.StringVar(&theme, "theme", string(ThemeDark), "theme: dark|light")
	fs.BoolVar(&cfg.Offline, "offline", false, "disable OpenAI format drafting")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", getenvDefault("LOGSCOPE_OPENAI_MODEL", "gpt-5-mini"), "OpenAI model override")
	fs.StringVar(&cfg.OpenAIBase, "openai-base-url", getenvDefault("LOGSCOPE_OPENAI_BASE_URL", ""), "OpenAI base URL override")
	fs.IntVar(&cfg.OpenAITimeoutSec, "openai-timeout-sec", getenvDefaultInt("LOGSCOPE_OPENAI_TIMEOUT_SEC", 120), "OpenAI request timeout in seconds")
	fs.StringVar(&cfg.Format, "format", "", "active format id or name (e.g. spring-boot, standard-log)")
	fs.StringVar(&cfg.ReadOnce, "read-once", "", "fetch a saved connection once by name, print parsed entries and exit")
	fs.StringVar(&cfg.ExportFormat, "export", "", "export parsed entries: csv|json")
	fs.StringVar(&cfg.ExportOut, "out", "", "output path for export")
	fs.StringVar(&cfg.ConfigFile, "config", getenvDefault("LOGSCOPE_CONFIG", ""), "optional YAML config file")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Theme = Theme(theme)

	if cfg.ConfigFile != "" {
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if err := cfg.applyFile(cfg.ConfigFile, set); err != nil {
			return nil, err
		}
	}

	if cfg.ExportFormat != "" && cfg.ExportOut == "" {
		return nil, errors.New("--export requires --out path")
	}
	if cfg.ExportFormat != "" && cfg.ExportFormat != "csv" && cfg.ExportFormat != "json" {
		return nil, fmt.Errorf("unsupported export format %q", cfg.ExportFormat)
	}
	if cfg.StoreBackend != "file" && cfg.StoreBackend != "sqlite" {
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	if cfg.Follow && cfg.FilePath == "" {
		return nil, errors.New("--follow requires --file")
	}
	if cfg.BufferLines < 0 {
		cfg.BufferLines = 0
	}
	if cfg.ConnectTimeoutSec <= 0 {
		cfg.ConnectTimeoutSec = 30
	}
	if cfg.Theme != ThemeDark && cfg.Theme != ThemeLight {
		cfg.Theme = ThemeDark
	}

	return cfg, nil
}

func (c *Config) applyFile(path string, set map[string]bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid config: %w", err)
	}

	setString := func(flagName string, dst *string, v *string) {
		if v != nil && !set[flagName] {
			*dst = *v
		}
	}
	setInt := func(flagName string, dst *int, v *int) {
		if v != nil && !set[flagName] {
			*dst = *v
		}
	}
	setString("store", &c.StorePath, fc.Store.Path)
	setString("store-backend", &c.StoreBackend, fc.Store.Backend)
	setInt("buffer-lines", &c.BufferLines, fc.BufferLines)
	setInt("connect-timeout-sec", &c.ConnectTimeoutSec, fc.ConnectTimeoutSec)
	setString("format", &c.Format, fc.Format)
	setString("openai-model", &c.OpenAIModel, fc.OpenAI.Model)
	setString("openai-base-url", &c.OpenAIBase, fc.OpenAI.BaseURL)
	setInt("openai-timeout-sec", &c.OpenAITimeoutSec, fc.OpenAI.TimeoutSec)
	if fc.Theme != nil && !set["theme"] {
		c.Theme = Theme(*fc.Theme)
	}
	if fc.Offline != nil && !set["offline"] {
		c.Offline = *fc.Offline
	}
	return nil
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "logscope", "state.json")
}

func getenvDefault(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvDefaultInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func (c *Config) OpenAIKey() string { return os.Getenv("OPENAI_API_KEY") }

func (c *Config) String() string {
	return fmt.Sprintf("file=%s follow=%v store=%s(%s) buffer=%d theme=%s offline=%v", c.FilePath, c.Follow, c.StorePath, c.StoreBackend, c.BufferLines, c.Theme, c.Offline)
}
