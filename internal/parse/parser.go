package parse

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/util/logx"
)

// Parser turns a single trimmed line into an entry. The bool is false when
// the line does not match and is a candidate for continuation handling.
type Parser interface {
	ParseLine(line string) (model.LogEntry, bool)
}

// Catalog resolves format ids. Satisfied by the format registry.
type Catalog interface {
	Get(id string) (model.LogFormatDefinition, bool)
}

// NewParser returns a regex parser for def, a JSON parser for JSON-kind
// definitions, or a plain one-entry-per-line parser when def is nil.
func NewParser(def *model.LogFormatDefinition) (Parser, error) {
	if def == nil {
		return PlainParser{}, nil
	}
	if def.IsJSON() {
		return JSONParser{}, nil
	}
	re, err := Compile(def.Pattern)
	if err != nil {
		return nil, err
	}
	return &RegexParser{groups: def.Groups, re: re}, nil
}

// maxCached bounds the compiled pattern cache. Typed-in candidates would
// otherwise accumulate for the life of the process.
const maxCached = 128

var cache = struct {
	sync.Mutex
	res   map[string]*regexp.Regexp
	order []string // insertion order, oldest first
}{res: map[string]*regexp.Regexp{}}

// Compile compiles pattern once and caches it, evicting the oldest entry
// when the cache is full. Failures are PatternErrors and are not cached.
func Compile(pattern string) (*regexp.Regexp, error) {
	cache.Lock()
	re, ok := cache.res[pattern]
	cache.Unlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, apperr.NewPatternError(pattern, err)
	}

	cache.Lock()
	defer cache.Unlock()
	if prev, ok := cache.res[pattern]; ok {
		return prev, nil
	}
	for len(cache.order) >= maxCached {
		delete(cache.res, cache.order[0])
		cache.order = cache.order[1:]
	}
	cache.res[pattern] = re
	cache.order = append(cache.order, pattern)
	return re, nil
}

func cachedPatterns() int {
	cache.Lock()
	defer cache.Unlock()
	return len(cache.res)
}

type PlainParser struct{}

func (PlainParser) ParseLine(line string) (model.LogEntry, bool) {
	return model.LogEntry{Content: line, Raw: line}, true
}

type RegexParser struct {
	groups model.GroupRoles
	re     *regexp.Regexp
}

func (p *RegexParser) ParseLine(line string) (model.LogEntry, bool) {
	return Extract(p.re, p.groups, line)
}

// Extract applies re to line and fills the entry from the configured roles.
// Roles pointing past the last group are left empty.
func Extract(re *regexp.Regexp, g model.GroupRoles, line string) (model.LogEntry, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return model.LogEntry{}, false
	}
	at := func(i int) string {
		if i <= 0 || i >= len(m) {
			return ""
		}
		return m[i]
	}
	e := model.LogEntry{
		Timestamp: at(g.Timestamp),
		Level:     normalizeLevel(at(g.Level)),
		TraceID:   at(g.TraceID),
		Logger:    at(g.Logger),
		Content:   at(g.Message),
		Raw:       line,
	}
	if e.Timestamp != "" {
		e.Time = parseTime(e.Timestamp)
	}
	return e, true
}

// ParseText runs p over text line by line. Empty lines are dropped. A line
// that does not match is folded into the previous entry when it starts with
// a space or tab, and dropped otherwise.
func ParseText(p Parser, text, source string) []model.LogEntry {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	out := make([]model.LogEntry, 0, len(lines))
	for _, raw := range lines {
		raw = strings.TrimRight(raw, "\r")
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if e, ok := p.ParseLine(line); ok {
			e.Source = source
			out = append(out, e)
			continue
		}
		if len(out) > 0 && (raw[0] == ' ' || raw[0] == '\t') {
			last := &out[len(out)-1]
			last.Content += "\n" + line
			last.Raw += "\n" + raw
			last.Continuation++
		}
	}
	return out
}

// Parse parses text under the format activeID from catalog. An empty,
// unknown or uncompilable active format yields plain entries.
func Parse(text, activeID string, catalog Catalog) []model.LogEntry {
	return ParseSource(text, "", activeID, catalog)
}

func ParseSource(text, source, activeID string, catalog Catalog) []model.LogEntry {
	var p Parser = PlainParser{}
	if activeID != "" && catalog != nil {
		if def, ok := catalog.Get(activeID); ok {
			rp, err := NewParser(&def)
			if err != nil {
				logx.Warnf("parse: format %s unusable: %v", def.Name, err)
			} else {
				p = rp
			}
		}
	}
	return ParseText(p, text, source)
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05,000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

func parseTime(s string) *time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

func normalizeLevel(lvl string) string {
	l := strings.ToUpper(strings.TrimSpace(lvl))
	switch l {
	case "TRACE":
		return "TRACE"
	case "DEBUG":
		return "DEBUG"
	case "INFO":
		return "INFO"
	case "WARN", "WARNING":
		return "WARN"
	case "ERROR", "ERR":
		return "ERROR"
	case "FATAL", "CRITICAL":
		return "FATAL"
	}
	return l
}
