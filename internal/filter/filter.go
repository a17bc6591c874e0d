package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Knetic/govaluate"

	"logscope/internal/model"
)

type Criteria struct {
	Query    string // plain contains, or a regex when UseRegex
	UseRegex bool
	Levels   map[string]bool
	Expr     string // govaluate expression over the entry fields
	Field    string // when set, apply Query only to this field
	// From and To bound the parsed timestamp. Entries without a parsed
	// time pass.
	From, To *time.Time
}

func (c Criteria) Empty() bool {
	return c.Query == "" && len(c.Levels) == 0 && strings.TrimSpace(c.Expr) == "" && c.From == nil && c.To == nil
}

type Evaluator struct {
	c    Criteria
	re   *regexp.Regexp
	expr *govaluate.EvaluableExpression
}

func NewEvaluator(c Criteria) (*Evaluator, error) {
	var re *regexp.Regexp
	var expr *govaluate.EvaluableExpression
	var err error
	if c.UseRegex && c.Query != "" {
		re, err = regexp.Compile(c.Query)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
	}
	if strings.TrimSpace(c.Expr) != "" {
		expr, err = govaluate.NewEvaluableExpression(c.Expr)
		if err != nil {
			return nil, fmt.Errorf("expression: %w", err)
		}
	}
	return &Evaluator{c: c, re: re, expr: expr}, nil
}

// field returns the named entry field, or ok=false for unknown names.
func field(e model.LogEntry, name string) (string, bool) {
	switch name {
	case "timestamp", "ts":
		return e.Timestamp, true
	case "level":
		return e.Level, true
	case "traceId", "trace":
		return e.TraceID, true
	case "logger":
		return e.Logger, true
	case "content", "message", "msg":
		return e.Content, true
	case "raw":
		return e.Raw, true
	case "source":
		return e.Source, true
	}
	return "", false
}

func params(e model.LogEntry) map[string]any {
	p := map[string]any{
		"timestamp":    e.Timestamp,
		"level":        e.Level,
		"traceId":      e.TraceID,
		"logger":       e.Logger,
		"content":      e.Content,
		"message":      e.Content,
		"raw":          e.Raw,
		"source":       e.Source,
		"continuation": float64(e.Continuation),
	}
	if e.Time != nil {
		p["ts"] = e.Time.Format(time.RFC3339)
		p["unix"] = float64(e.Time.Unix())
	}
	return p
}

func (e *Evaluator) Match(entry model.LogEntry) bool {
	c := e.c
	if len(c.Levels) > 0 {
		if !c.Levels[strings.ToUpper(entry.Level)] {
			return false
		}
	}
	if entry.Time != nil {
		if c.From != nil && entry.Time.Before(*c.From) {
			return false
		}
		if c.To != nil && entry.Time.After(*c.To) {
			return false
		}
	}
	if c.Query != "" {
		text := entry.Raw
		if c.Field != "" {
			text, _ = field(entry, c.Field)
		}
		if e.re != nil {
			if !e.re.MatchString(text) {
				return false
			}
		} else if !strings.Contains(strings.ToLower(text), strings.ToLower(c.Query)) {
			return false
		}
	}
	if e.expr != nil {
		result, err := e.expr.Evaluate(params(entry))
		if err != nil {
			return false
		}
		b, ok := result.(bool)
		if !ok || !b {
			return false
		}
	}
	return true
}

// Apply returns the entries matching e, preserving order.
func (e *Evaluator) Apply(entries []model.LogEntry) []model.LogEntry {
	if e.c.Empty() {
		return entries
	}
	out := make([]model.LogEntry, 0, len(entries))
	for _, en := range entries {
		if e.Match(en) {
			out = append(out, en)
		}
	}
	return out
}

// ParseLevels turns "error,warn" into a level set.
func ParseLevels(s string) map[string]bool {
	out := map[string]bool{}
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		out[strings.ToUpper(p)] = true
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
