package filter

import (
	"testing"
	"time"

	"logscope/internal/model"
)

func entries() []model.LogEntry {
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return []model.LogEntry{
		{Time: &t1, Level: "INFO", Logger: "web", Content: "request served", Raw: "10:00 INFO web request served"},
		{Time: &t2, Level: "ERROR", Logger: "db", Content: "disk full", Raw: "12:00 ERROR db disk full", Continuation: 2},
		{Level: "WARN", Content: "no timestamp", Raw: "WARN no timestamp"},
	}
}

func contents(es []model.LogEntry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Content
	}
	return out
}

func TestApply(t *testing.T) {
	from := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"empty", Criteria{}, []string{"request served", "disk full", "no timestamp"}},
		{"levels", Criteria{Levels: ParseLevels("error, warn")}, []string{"disk full", "no timestamp"}},
		{"contains", Criteria{Query: "DISK"}, []string{"disk full"}},
		{"regex", Criteria{Query: `^\d+:00 (INFO|WARN)`, UseRegex: true}, []string{"request served"}},
		{"field", Criteria{Query: "db", Field: "logger"}, []string{"disk full"}},
		{"time range keeps untimed", Criteria{From: &from}, []string{"disk full", "no timestamp"}},
		{"expr", Criteria{Expr: `level == "ERROR" && continuation > 1`}, []string{"disk full"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NewEvaluator(tt.c)
			if err != nil {
				t.Fatalf("NewEvaluator: %v", err)
			}
			got := contents(ev.Apply(entries()))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestBadCriteria(t *testing.T) {
	if _, err := NewEvaluator(Criteria{Query: "(", UseRegex: true}); err == nil {
		t.Fatal("expected regex error")
	}
	if _, err := NewEvaluator(Criteria{Expr: "level =="}); err == nil {
		t.Fatal("expected expression error")
	}
}

func TestParseLevelsEmpty(t *testing.T) {
	if ParseLevels(" , ") != nil {
		t.Fatal("expected nil set")
	}
}
