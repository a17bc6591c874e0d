package version

import "testing"

func TestFormat(t *testing.T) {
	cases := []struct {
		version, commit, date, want string
	}{
		{"dev", "", "", "dev"},
		{"1.2.0", "abc123", "", "1.2.0 (abc123)"},
		{"1.2.0", "0123456789abcdef", "2026-01-02", "1.2.0 (0123456789ab) 2026-01-02"},
	}
	for _, c := range cases {
		if got := format(c.version, c.commit, c.date); got != c.want {
			t.Fatalf("format(%q,%q,%q) = %q, want %q", c.version, c.commit, c.date, got, c.want)
		}
	}
}

func TestStringUsesLdflags(t *testing.T) {
	old := Commit
	defer func() { Commit = old }()
	Commit = "feedface"
	if got := String(); got != Version+" (feedface)"+dateSuffix() {
		t.Fatalf("String() = %q", got)
	}
}

func dateSuffix() string {
	if Date == "" {
		return ""
	}
	return " " + Date
}
