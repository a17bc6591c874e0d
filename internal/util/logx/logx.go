package logx

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var (
	mu       sync.RWMutex
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sink     = &ringSink{max: 500}
	logger   *zap.Logger
	sugar    *zap.SugaredLogger
	toStderr = false // stderr output breaks the TUI; enable via LOGSCOPE_LOG_STDERR=1
)

func init() { rebuild() }

// ringSink keeps the most recent formatted lines for the in-app log view.
type ringSink struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func (s *ringSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if len(s.lines) >= s.max {
			// drop oldest
			copy(s.lines[0:], s.lines[1:])
			s.lines = s.lines[:len(s.lines)-1]
		}
		s.lines = append(s.lines, l)
	}
	return len(p), nil
}

func (s *ringSink) Sync() error { return nil }

func (s *ringSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func encoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	cfg.ConsoleSeparator = " "
	return zapcore.NewConsoleEncoder(cfg)
}

func rebuild() {
	cores := []zapcore.Core{zapcore.NewCore(encoder(), sink, level)}
	if toStderr {
		cores = append(cores, zapcore.NewCore(encoder(), zapcore.Lock(os.Stderr), level))
	}
	l := zap.New(zapcore.NewTee(cores...))
	mu.Lock()
	logger = l
	sugar = l.Sugar()
	mu.Unlock()
}

func SetLevel(l Level) {
	switch l {
	case Debug:
		level.SetLevel(zapcore.DebugLevel)
	case Warn:
		level.SetLevel(zapcore.WarnLevel)
	case Error:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

func SetLevelFromEnv() {
	lv := strings.ToLower(strings.TrimSpace(os.Getenv("LOGSCOPE_LOG_LEVEL")))
	switch lv {
	case "debug":
		SetLevel(Debug)
	case "info":
		SetLevel(Info)
	case "warn", "warning":
		SetLevel(Warn)
	case "error":
		SetLevel(Error)
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LOGSCOPE_LOG_STDERR"))); v != "" {
		toStderr = v != "0" && v != "false" && v != "no"
		rebuild()
	}
}

// L returns the structured logger for packages that log with zap fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debugf(format string, a ...any) { s().Debugf(format, a...) }
func Infof(format string, a ...any)  { s().Infof(format, a...) }
func Warnf(format string, a ...any)  { s().Warnf(format, a...) }
func Errorf(format string, a ...any) { s().Errorf(format, a...) }

func Dump() string {
	return strings.Join(sink.snapshot(), "\n")
}

func Lines() []string {
	return sink.snapshot()
}
