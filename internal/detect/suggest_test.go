package detect

import (
	"testing"

	"logscope/internal/formats"
)

func TestSuggestSpringBoot(t *testing.T) {
	lines := []string{
		"2023-04-08 16:40:01.279 INFO 17017 --- [main] o.e.App : started",
		"2023-04-08 16:40:02.001 ERROR 17017 --- [pool-1] o.e.Job : failed",
		"java.lang.IllegalStateException: boom",
		"\tat o.e.Job.run(Job.java:42)",
		"",
	}
	g := Suggest(lines, formats.Builtins())
	if g.FormatID != "spring-boot" {
		t.Fatalf("expected spring-boot, got %+v", g)
	}
	if g.Lines != 3 || g.Matched != 2 {
		t.Fatalf("unexpected counts: %+v", g)
	}
}

func TestSuggestPython(t *testing.T) {
	lines := []string{
		"2024-05-01 09:00:00,123 - app.api - INFO - ready",
		"2024-05-01 09:00:01,456 - app.api - WARNING - slow",
	}
	if g := Suggest(lines, formats.Builtins()); g.FormatID != "python-logging" || g.Confidence != 1 {
		t.Fatalf("expected python-logging, got %+v", g)
	}
}

func TestSuggestNothing(t *testing.T) {
	g := Suggest([]string{"hello", "world", "2023-04-08 16:40:01 [INFO] one"}, formats.Builtins())
	if g.Found() {
		t.Fatalf("expected no suggestion, got %+v", g)
	}
	if g := Suggest(nil, formats.Builtins()); g.Found() || g.Lines != 0 {
		t.Fatalf("empty sample: %+v", g)
	}
}

func TestSuggestJSONLines(t *testing.T) {
	lines := []string{
		`{"level":"info","msg":"up"}`,
		`{"level":"error","msg":"down"}`,
		`{not really json}`,
	}
	g := Suggest(lines, formats.Builtins())
	if g.FormatID != "json" || g.Matched != 2 {
		t.Fatalf("expected json with 2 matches, got %+v", g)
	}
}
