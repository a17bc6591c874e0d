package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logscope/internal/model"
)

func sample() []model.LogEntry {
	ts := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	return []model.LogEntry{
		{Timestamp: "2024-03-01 08:30:00", Time: &ts, Level: "ERROR", Logger: "c.e.Api", Content: "boom, again\n  at x", Raw: "raw", Continuation: 1},
		{Level: "INFO", Content: "plain", Raw: "plain"},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(recs))
	}
	if recs[1][0] != "2024-03-01T08:30:00Z" || recs[1][4] != "boom, again\n  at x" || recs[1][6] != "1" {
		t.Fatalf("unexpected row: %q", recs[1])
	}
	if err := WriteCSV(&buf, nil); err != ErrNoEntries {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "entries.ndjson")
	if err := Write("json", out, sample()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"level":"ERROR"`) {
		t.Fatalf("unexpected ndjson: %s", b)
	}
	if err := Write("xml", out, sample()); err == nil {
		t.Fatal("expected unknown format error")
	}
	if err := ToCSV(filepath.Join(dir, "e.csv"), sample()); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}
}
