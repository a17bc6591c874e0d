package ui

import (
	"regexp"
	"strings"

	"logscope/internal/model"
)

// splitQuery treats /.../ as a regular expression.
func splitQuery(q string) (string, bool) {
	if strings.HasPrefix(q, "/") && strings.HasSuffix(q, "/") && len(q) > 2 {
		return q[1 : len(q)-1], true
	}
	return q, false
}

func (m *Model) searchNext() {
	if !m.searchActive || m.searchPattern == "" || len(m.filtered) == 0 {
		return
	}
	start := m.cursor + 1
	for i := 0; i < len(m.filtered); i++ {
		idx := (start + i) % len(m.filtered)
		if m.entryMatchesSearch(m.filtered[idx]) {
			m.moveCursor(idx)
			return
		}
	}
	m.lastMsg = "no match for " + m.searchPattern
}

func (m *Model) searchPrev() {
	if !m.searchActive || m.searchPattern == "" || len(m.filtered) == 0 {
		return
	}
	start := m.cursor - 1
	if start < 0 {
		start = len(m.filtered) - 1
	}
	for i := 0; i < len(m.filtered); i++ {
		idx := start - i
		if idx < 0 {
			idx += len(m.filtered)
		}
		if m.entryMatchesSearch(m.filtered[idx]) {
			m.moveCursor(idx)
			return
		}
	}
	m.lastMsg = "no match for " + m.searchPattern
}

func (m *Model) moveCursor(idx int) {
	if len(m.filtered) == 0 {
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.filtered) {
		idx = len(m.filtered) - 1
	}
	m.cursor = idx
	m.follow = idx == len(m.filtered)-1
	m.rebuildStream()
}

func (m *Model) entryMatchesSearch(e model.LogEntry) bool {
	text := e.Raw
	if m.searchRegex {
		re, err := regexp.Compile(m.searchPattern)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(m.searchPattern))
}
