package ui

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"logscope/internal/model"
)

func connColumns(width int) []table.Column {
	fixed := 2 + 20 + 16 + 14 + 6
	rest := width - fixed
	if rest < 20 {
		rest = 20
	}
	return []table.Column{
		{Title: "", Width: 2},
		{Title: "name", Width: 20},
		{Title: "kind", Width: 16},
		{Title: "status", Width: 14},
		{Title: "target", Width: rest * 2 / 3},
		{Title: "last error", Width: rest - rest*2/3},
	}
}

func endpoint(c model.RemoteConnection) string {
	if c.Kind == model.KindLocalFile {
		return c.TargetPath
	}
	host := c.Host
	if c.Port > 0 {
		host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	if c.Credential.Username != "" {
		host = c.Credential.Username + "@" + host
	}
	if c.TargetPath == "" {
		return host
	}
	if strings.HasPrefix(c.TargetPath, "/") {
		return host + c.TargetPath
	}
	return host + "/" + c.TargetPath
}

func (m *Model) statusLabel(c model.RemoteConnection) string {
	switch {
	case c.Status == model.StatusConnecting:
		return m.spin.View() + " connecting"
	case c.Status == model.StatusConnected && c.Monitoring:
		return "● streaming"
	case c.Status == model.StatusConnected:
		return "○ connected"
	case c.Status == "":
		return string(model.StatusDisconnected)
	}
	return string(c.Status)
}

func (m *Model) selectedConn() (model.RemoteConnection, bool) {
	i := m.connTbl.Cursor()
	if i < 0 || i >= len(m.conns) {
		return model.RemoteConnection{}, false
	}
	return m.conns[i], true
}

func (m *Model) refreshConnections() {
	prev, hadPrev := m.selectedConn()
	m.conns = m.app.Connections.List(m.connFilter)
	active := m.sess.View().ActiveID
	rows := make([]table.Row, len(m.conns))
	cursor := -1
	for i, c := range m.conns {
		mark := ""
		if c.ID == active {
			mark = "▶"
		}
		rows[i] = table.Row{mark, c.Name, string(c.Kind), m.statusLabel(c), endpoint(c), c.LastError}
		if hadPrev && c.ID == prev.ID {
			cursor = i
		}
	}
	m.connTbl.SetRows(rows)
	if cursor >= 0 {
		m.connTbl.SetCursor(cursor)
	} else if m.connTbl.Cursor() >= len(rows) && len(rows) > 0 {
		m.connTbl.SetCursor(len(rows) - 1)
	}
}

func (m *Model) anyConnecting() bool {
	for _, c := range m.conns {
		if c.Status == model.StatusConnecting {
			return true
		}
	}
	return false
}

// refreshEntries re-parses the active display when it changed. The whole
// display is parsed again so continuation folding stays correct.
func (m *Model) refreshEntries(force bool) {
	v := m.sess.View()
	if !force && v.Version == m.viewVersion {
		return
	}
	m.viewVersion = v.Version
	m.activeName = ""
	if c, ok := m.app.Connections.Get(v.ActiveID); ok {
		m.activeName = c.Name
	}
	m.entries = m.app.ParseText(v.Display, m.activeName)
	m.applyFilter()
}

func (m *Model) applyFilter() {
	if m.eval != nil {
		m.filtered = m.eval.Apply(m.entries)
	} else {
		m.filtered = m.entries
	}
	if m.follow || m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.rebuildStream()
}

func (m *Model) rebuildStream() {
	var b strings.Builder
	line, cursorLine := 0, 0
	for i, e := range m.filtered {
		if i == m.cursor {
			cursorLine = line
		}
		s := m.renderEntry(e, i == m.cursor)
		b.WriteString(s)
		b.WriteByte('\n')
		line += strings.Count(s, "\n") + 1
	}
	m.stream.SetContent(strings.TrimRight(b.String(), "\n"))
	if m.follow {
		m.stream.GotoBottom()
		return
	}
	if cursorLine < m.stream.YOffset || cursorLine >= m.stream.YOffset+m.stream.Height {
		m.stream.SetYOffset(cursorLine)
	}
}

func (m *Model) renderEntry(e model.LogEntry, selected bool) string {
	prefix := "  "
	if selected {
		prefix = m.styles.Selected.Render(">") + " "
	}
	ts := e.Timestamp
	if e.Time != nil {
		ts = e.Time.Format("2006-01-02 15:04:05")
	}
	lines := strings.Split(e.Content, "\n")
	var head string
	if e.Level == "" && ts == "" {
		head = lines[0]
	} else {
		lvl := m.styles.level(e.Level).Render(padRight(e.Level, 5))
		parts := []string{}
		if ts != "" {
			parts = append(parts, m.styles.Status.Render(ts))
		}
		parts = append(parts, lvl)
		if e.Logger != "" {
			parts = append(parts, m.styles.Help.Render(e.Logger+":"))
		}
		if e.TraceID != "" {
			parts = append(parts, m.styles.Help.Render("["+e.TraceID+"]"))
		}
		parts = append(parts, lines[0])
		head = strings.Join(parts, " ")
	}
	out := prefix + head
	for _, l := range lines[1:] {
		out += "\n    " + m.styles.level(e.Level).Faint(true).Render(l)
	}
	return out
}

func (m *Model) streamTitle() string {
	if m.activeName == "" {
		return "no active connection (select one and press enter)"
	}
	return fmt.Sprintf("%s  %d/%d entries", m.activeName, len(m.filtered), len(m.entries))
}
