package logx

import (
	"strings"
	"testing"
)

func TestLinesCaptureAndLevel(t *testing.T) {
	SetLevel(Warn)
	defer SetLevel(Info)

	Infof("hidden %d", 1)
	Warnf("visible %s", "warning")

	dump := Dump()
	if strings.Contains(dump, "hidden 1") {
		t.Fatalf("info line should be filtered at warn level: %q", dump)
	}
	if !strings.Contains(dump, "WARN visible warning") {
		t.Fatalf("expected warn line in dump, got %q", dump)
	}
}

func TestRingSinkDropsOldest(t *testing.T) {
	r := &ringSink{max: 2}
	_, _ = r.Write([]byte("a\n"))
	_, _ = r.Write([]byte("b\nc\n"))
	got := r.snapshot()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("unexpected ring contents: %v", got)
	}
}
