package parse

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"logscope/internal/model"
)

var (
	jsonLevelKeys   = []string{"level", "severity", "loglevel", "log_level", "logLevel", "lvl"}
	jsonTimeKeys    = []string{"timestamp", "@timestamp", "time", "date", "datetime", "ts"}
	jsonContentKeys = []string{"message", "msg", "content", "text", "log", "rest"}
	jsonLoggerKeys  = []string{"logger", "class", "service"}
	jsonTraceKeys   = []string{"trace", "traceId", "span"}
	// payload keys that may carry a nested JSON document, e.g. container runtimes
	jsonInnerKeys = []string{"log", "msg", "message"}
)

// fields left out of the content when a line has no message field
var jsonMetaKeys = map[string]bool{
	"timestamp": true, "@timestamp": true, "time": true, "date": true, "datetime": true, "ts": true,
	"level": true, "severity": true, "loglevel": true, "log_level": true, "logLevel": true,
	"logger": true, "class": true, "service": true,
}

// JSONParser reads one JSON object per line. Lines that are not an object
// do not match.
type JSONParser struct{}

func (JSONParser) ParseLine(line string) (model.LogEntry, bool) {
	t := strings.TrimSpace(line)
	if !strings.HasPrefix(t, "{") || !strings.HasSuffix(t, "}") {
		return model.LogEntry{}, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(t), &m); err != nil || m == nil {
		return model.LogEntry{}, false
	}

	e := model.LogEntry{
		Timestamp: getStringPaths(m, jsonTimeKeys),
		Level:     getStringPaths(m, jsonLevelKeys),
		TraceID:   getStringPaths(m, jsonTraceKeys),
		Logger:    getStringPaths(m, jsonLoggerKeys),
		Content:   jsonContent(m, t),
		Raw:       line,
	}

	// a string payload holding its own JSON document fills what the wrapper lacks
	if inner := innerPayload(m); inner != nil {
		if e.Timestamp == "" {
			e.Timestamp = getStringPaths(inner, jsonTimeKeys)
		}
		if e.Level == "" {
			e.Level = getStringPaths(inner, jsonLevelKeys)
		}
		if e.TraceID == "" {
			e.TraceID = getStringPaths(inner, jsonTraceKeys)
		}
		if e.Logger == "" {
			e.Logger = getStringPaths(inner, jsonLoggerKeys)
		}
		if msg, ok := firstPresent(inner, jsonContentKeys); ok {
			e.Content = stringify(msg)
		}
	}

	if e.Level == "" {
		e.Level = "INFO"
	}
	e.Level = normalizeLevel(e.Level)
	if e.Timestamp != "" {
		e.Time = parseJSONTime(m, e.Timestamp)
	}
	return e, true
}

func jsonContent(m map[string]any, line string) string {
	if v, ok := firstPresent(m, jsonContentKeys); ok {
		return stringify(v)
	}
	rest := make(map[string]any, len(m))
	for k, v := range m {
		if !jsonMetaKeys[k] {
			rest[k] = v
		}
	}
	if len(rest) == 0 {
		return line
	}
	b, err := json.Marshal(rest)
	if err != nil {
		return line
	}
	return string(b)
}

func innerPayload(m map[string]any) map[string]any {
	for _, k := range jsonInnerKeys {
		s, ok := m[k].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
			continue
		}
		var inner map[string]any
		if err := json.Unmarshal([]byte(s), &inner); err == nil && inner != nil {
			return inner
		}
	}
	return nil
}

func firstPresent(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// getStringPaths returns the first of keys present in m, rendered as text.
func getStringPaths(m map[string]any, keys []string) string {
	if v, ok := firstPresent(m, keys); ok {
		return stringify(v)
	}
	return ""
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// parseJSONTime accepts the text layouts plus numeric epochs in seconds or
// milliseconds.
func parseJSONTime(m map[string]any, ts string) *time.Time {
	if v, ok := firstPresent(m, jsonTimeKeys); ok {
		if n, ok := v.(float64); ok {
			var t time.Time
			if n > 1e12 {
				t = time.UnixMilli(int64(n))
			} else {
				sec := int64(n)
				t = time.Unix(sec, int64((n-float64(sec))*1e9))
			}
			return &t
		}
	}
	return parseTime(ts)
}
