package ui

import (
	"fmt"
	"strconv"
	"strings"

	"logscope/internal/apperr"
	"logscope/internal/model"
)

func getCol(e model.LogEntry, c string) string {
	switch c {
	case "ts", "time", "timestamp":
		if e.Time != nil {
			return e.Time.Format("2006-01-02 15:04:05")
		}
		return e.Timestamp
	case "level", "lvl", "severity":
		return e.Level
	case "logger":
		return e.Logger
	case "trace", "traceId":
		return e.TraceID
	case "source":
		return e.Source
	case "msg", "message", "content":
		return e.Content
	}
	return e.Raw
}

// parseGroups reads "timestamp=1,level=2,message=3".
func parseGroups(s string) (model.GroupRoles, error) {
	var g model.GroupRoles
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return g, apperr.NewValidationError("groups", fmt.Sprintf("expected role=index, got %q", part))
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return g, apperr.NewValidationError("groups."+k, "index must be a number")
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "timestamp", "ts":
			g.Timestamp = n
		case "level":
			g.Level = n
		case "message", "msg":
			g.Message = n
		case "traceid", "trace":
			g.TraceID = n
		case "logger":
			g.Logger = n
		default:
			return g, apperr.NewValidationError("groups", fmt.Sprintf("unknown role %q", k))
		}
	}
	return g, nil
}

// parseFormatInput reads "name | pattern | roles". The pattern may itself
// contain '|', so name and roles are taken from the ends.
func parseFormatInput(s, sample string) (model.LogFormatDefinition, error) {
	first := strings.Index(s, "|")
	last := strings.LastIndex(s, "|")
	if first < 0 || first == last {
		return model.LogFormatDefinition{}, apperr.NewValidationError("format", "expected: name | pattern | level=2,message=3")
	}
	g, err := parseGroups(s[last+1:])
	if err != nil {
		return model.LogFormatDefinition{}, err
	}
	return model.LogFormatDefinition{
		Name:    strings.TrimSpace(s[:first]),
		Pattern: strings.TrimSpace(s[first+1 : last]),
		Groups:  g,
		Sample:  sample,
	}, nil
}

func firstRecordLine(text string) string {
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" || strings.HasPrefix(l, " ") || strings.HasPrefix(l, "\t") {
			continue
		}
		return strings.TrimSpace(l)
	}
	return ""
}

func groupsLabel(g model.GroupRoles) string {
	named := g.Named()
	parts := make([]string, 0, len(named))
	for _, role := range []string{"timestamp", "level", "logger", "traceId", "message"} {
		if idx, ok := named[role]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", role, idx))
		}
	}
	return strings.Join(parts, ",")
}
