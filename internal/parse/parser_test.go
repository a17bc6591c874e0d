package parse

import (
	"fmt"
	"testing"

	"logscope/internal/apperr"
	"logscope/internal/model"
)

type catalog map[string]model.LogFormatDefinition

func (c catalog) Get(id string) (model.LogFormatDefinition, bool) {
	d, ok := c[id]
	return d, ok
}

var standard = model.LogFormatDefinition{
	ID:      "standard-log",
	Name:    "Standard",
	Pattern: `^(\d{4}-\d{2}-\d{2}\s\d{2}:\d{2}:\d{2}(?:\.\d{3})?)\s+\[(\w+)\]\s+(.*)$`,
	Groups:  model.GroupRoles{Timestamp: 1, Level: 2, Message: 3},
}

func TestRegexParserExtractsRoles(t *testing.T) {
	def := model.LogFormatDefinition{
		Pattern: `^(\d{4}-\d{2}-\d{2})\s\[(\w+)\]\s(.*)$`,
		Groups:  model.GroupRoles{Timestamp: 1, Level: 2, Message: 3},
	}
	p, err := NewParser(&def)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	e, ok := p.ParseLine("2024-01-01 [ERROR] disk full")
	if !ok {
		t.Fatalf("expected match")
	}
	if e.Level != "ERROR" || e.Content != "disk full" || e.Timestamp != "2024-01-01" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Time == nil {
		t.Fatalf("expected parsed time")
	}
	if e.TraceID != "" || e.Logger != "" {
		t.Fatalf("unset roles must stay empty: %+v", e)
	}
}

func TestParseContinuationAndDrop(t *testing.T) {
	text := "2024-01-01 10:00:00 [ERROR] boom\n" +
		"\tat com.example.Main(Main.java:10)\n" +
		"    at com.example.App(App.java:3)\n" +
		"garbage line\n" +
		"\n" +
		"2024-01-01 10:00:01 [warning] recovered\r\n"
	got := Parse(text, "standard-log", catalog{"standard-log": standard})
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(got), got)
	}
	if got[0].Continuation != 2 {
		t.Fatalf("continuations: %d", got[0].Continuation)
	}
	want := "boom\nat com.example.Main(Main.java:10)\nat com.example.App(App.java:3)"
	if got[0].Content != want {
		t.Fatalf("content: %q", got[0].Content)
	}
	if got[1].Level != "WARN" || got[1].Content != "recovered" {
		t.Fatalf("second entry: %+v", got[1])
	}
}

func TestLeadingIndentedLineWithoutParentIsDropped(t *testing.T) {
	got := Parse("  orphan\n2024-01-01 10:00:00 [INFO] ok", "standard-log", catalog{"standard-log": standard})
	if len(got) != 1 || got[0].Content != "ok" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestNoActiveFormatEmitsPlainEntries(t *testing.T) {
	for _, id := range []string{"", "missing"} {
		got := ParseSource("a\n\n  b  \n", "web-1", id, catalog{"standard-log": standard})
		if len(got) != 2 {
			t.Fatalf("id %q: expected 2 entries, got %d", id, len(got))
		}
		if got[1].Content != "b" || got[1].Level != "" || got[1].Source != "web-1" {
			t.Fatalf("id %q: unexpected entry %+v", id, got[1])
		}
	}
}

func TestCompileReportsPatternError(t *testing.T) {
	_, err := Compile("(unclosed")
	if !apperr.IsPattern(err) {
		t.Fatalf("expected PatternError, got %v", err)
	}
	a, err := Compile(`^x$`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, _ := Compile(`^x$`)
	if a != b {
		t.Fatalf("expected cached regexp to be reused")
	}
}

func TestNormalizeLevel(t *testing.T) {
	cases := map[string]string{"warning": "WARN", "err": "ERROR", "Critical": "FATAL", "info": "INFO", "notice": "NOTICE"}
	for in, want := range cases {
		if got := normalizeLevel(in); got != want {
			t.Fatalf("normalizeLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompileCacheIsBounded(t *testing.T) {
	var first, last string
	for i := 0; i < maxCached+40; i++ {
		p := fmt.Sprintf(`^bounded-%d (\w+)$`, i)
		if i == 0 {
			first = p
		}
		last = p
		if _, err := Compile(p); err != nil {
			t.Fatalf("compile %s: %v", p, err)
		}
	}
	if n := cachedPatterns(); n > maxCached {
		t.Fatalf("cache holds %d patterns, limit %d", n, maxCached)
	}
	cache.Lock()
	_, hasFirst := cache.res[first]
	_, hasLast := cache.res[last]
	cache.Unlock()
	if hasFirst || !hasLast {
		t.Fatalf("expected oldest evicted and newest kept: first=%v last=%v", hasFirst, hasLast)
	}
}

var jsonFormat = model.LogFormatDefinition{ID: "json", Name: "JSON lines", Kind: model.FormatKindJSON}

func TestJSONParserFields(t *testing.T) {
	p, err := NewParser(&jsonFormat)
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	line := `{"@timestamp":"2024-01-01T10:00:00Z","severity":"warning","msg":"slow query","class":"db.Pool","traceId":"abc"}`
	e, ok := p.ParseLine(line)
	if !ok {
		t.Fatalf("expected match")
	}
	if e.Level != "WARN" || e.Content != "slow query" || e.Logger != "db.Pool" || e.TraceID != "abc" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Timestamp != "2024-01-01T10:00:00Z" || e.Time == nil || e.Raw != line {
		t.Fatalf("timestamp: %+v", e)
	}
}

func TestJSONParserContentFallbacks(t *testing.T) {
	p := JSONParser{}

	e, _ := p.ParseLine(`{"message":{"code":7},"service":"api"}`)
	if e.Content != `{"code":7}` || e.Logger != "api" || e.Level != "INFO" {
		t.Fatalf("object message: %+v", e)
	}

	e, _ = p.ParseLine(`{"level":"error","ts":1704103200,"user":"bob","span":"s1"}`)
	if e.Content != `{"span":"s1","user":"bob"}` || e.TraceID != "s1" || e.Level != "ERROR" {
		t.Fatalf("meta-stripped content: %+v", e)
	}
	if e.Time == nil || e.Time.Unix() != 1704103200 {
		t.Fatalf("epoch time: %+v", e.Time)
	}

	line := `{"level":"debug","time":"2024-01-01 10:00:00"}`
	e, _ = p.ParseLine(line)
	if e.Content != line {
		t.Fatalf("meta-only line keeps whole object: %q", e.Content)
	}
}

func TestJSONParserInnerPayload(t *testing.T) {
	line := `{"stream":"stdout","log":"{\"lvl\":\"error\",\"ts\":\"2024-01-01T10:00:00Z\",\"msg\":\"boom\",\"logger\":\"worker\"}"}`
	e, ok := JSONParser{}.ParseLine(line)
	if !ok {
		t.Fatalf("expected match")
	}
	if e.Level != "ERROR" || e.Content != "boom" || e.Logger != "worker" || e.Timestamp != "2024-01-01T10:00:00Z" {
		t.Fatalf("inner payload not merged: %+v", e)
	}
}

func TestJSONFormatThroughCatalog(t *testing.T) {
	text := "{\"level\":\"info\",\"msg\":\"up\"}\nnot json\n\tat worker.run\n[1,2]\n{\"level\":\"warn\",\"msg\":\"hot\"}"
	got := Parse(text, "json", catalog{"json": jsonFormat})
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(got), got)
	}
	if got[0].Content != "up\nat worker.run" || got[0].Continuation != 1 {
		t.Fatalf("first entry: %+v", got[0])
	}
	if got[1].Level != "WARN" || got[1].Content != "hot" {
		t.Fatalf("second entry: %+v", got[1])
	}
}
