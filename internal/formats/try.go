package formats

import (
	"logscope/internal/apperr"
	"logscope/internal/model"
	"logscope/internal/parse"
)

// TestResult is the outcome of trying a candidate definition on a sample.
type TestResult struct {
	OK     bool
	Fields map[string]string
	Reason string
	Err    error
}

// Test applies def to sample without touching any registry. Only the pattern
// and group roles of def are considered, or the JSON field lookup for JSON
// definitions.
func Test(def model.LogFormatDefinition, sample string) TestResult {
	if def.IsJSON() {
		return testJSON(sample)
	}
	if def.Pattern == "" || sample == "" {
		return TestResult{Reason: "pattern and sample are required",
			Err: apperr.NewValidationError("pattern", "pattern and sample are required")}
	}
	re, err := parse.Compile(def.Pattern)
	if err != nil {
		return TestResult{Reason: err.Error(), Err: err}
	}
	if err := validateRoles(def.Groups, re.NumSubexp()); err != nil {
		return TestResult{Reason: err.Error(), Err: err}
	}
	e, ok := parse.Extract(re, def.Groups, sample)
	if !ok {
		return TestResult{Reason: "pattern does not match sample"}
	}
	fields := map[string]string{}
	for role := range def.Groups.Named() {
		fields[role] = roleValue(e, role)
	}
	return TestResult{OK: true, Fields: fields}
}

// testJSON reports every role the parser could fill.
func testJSON(sample string) TestResult {
	if sample == "" {
		return TestResult{Reason: "sample is required",
			Err: apperr.NewValidationError("sample", "sample is required")}
	}
	e, ok := parse.JSONParser{}.ParseLine(sample)
	if !ok {
		return TestResult{Reason: "sample is not a JSON object"}
	}
	fields := map[string]string{}
	for _, role := range []string{"timestamp", "level", "message", "traceId", "logger"} {
		if v := roleValue(e, role); v != "" {
			fields[role] = v
		}
	}
	return TestResult{OK: true, Fields: fields}
}

func roleValue(e model.LogEntry, role string) string {
	switch role {
	case "timestamp":
		return e.Timestamp
	case "level":
		return e.Level
	case "message":
		return e.Content
	case "traceId":
		return e.TraceID
	case "logger":
		return e.Logger
	}
	return ""
}
