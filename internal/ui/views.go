package ui

import (
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"logscope/internal/model"
)

// overlay draws top over base line by line. Blank lines of top let base
// show through.
func overlay(base, top string) string {
	b := strings.Split(base, "\n")
	o := strings.Split(top, "\n")
	n := max(len(b), len(o))
	out := make([]string, n)
	for i := range out {
		switch {
		case i < len(o) && strings.TrimSpace(o[i]) != "":
			out[i] = o[i]
		case i < len(b):
			out[i] = b[i]
		}
	}
	return strings.Join(out, "\n")
}

// copyToClipboard tries to copy text using OSC52 (works in many terminals).
func copyToClipboard(s string) {
	s = stripANSI(s)
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	payload := fmt.Sprintf("\x1b]52;c;%s\x07", enc)
	if f, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0); err == nil {
		defer f.Close()
		_, _ = f.WriteString(payload)
		return
	}
	fmt.Fprint(os.Stdout, payload)
}

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

type valueCount struct {
	value string
	n     int
}

func countValues(c string, entries []model.LogEntry) []valueCount {
	counts := map[string]int{}
	for _, e := range entries {
		v := getCol(e, c)
		if v == "" {
			v = "(none)"
		}
		counts[v]++
	}
	out := make([]valueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, valueCount{v, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].value < out[j].value
	})
	return out
}

// columnStats renders a bar per distinct value of column c, most frequent
// first.
func columnStats(c string, entries []model.LogEntry, width int) string {
	counts := countValues(c, entries)
	if len(counts) == 0 {
		return "No data"
	}
	labelW := max(width/3, 8)
	barW := max(width-labelW-10, 5)
	top := counts[0].n
	lines := make([]string, len(counts))
	for i, vc := range counts {
		n := int(math.Round(float64(barW) * float64(vc.n) / float64(top)))
		lines[i] = fmt.Sprintf("%s %s (%d)", padRight(truncateRunes(vc.value, labelW), labelW), bar(n, float64(vc.n)/float64(top)), vc.n)
	}
	return strings.Join(lines, "\n")
}

// bar shades from yellow towards red as ratio approaches 1.
func bar(width int, ratio float64) string {
	if width <= 0 {
		return ""
	}
	color := max(226-int(ratio*30), 196)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(strconv.Itoa(color))).Render(strings.Repeat("▇", width))
}

func sortedStrings(s []string) []string {
	sort.Strings(s)
	return s
}

func padRight(s string, w int) string {
	if n := len([]rune(s)); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

func truncateRunes(s string, w int) string {
	if rs := []rune(s); len(rs) > w {
		return string(rs[:w])
	}
	return s
}
