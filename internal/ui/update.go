package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"logscope/internal/detect"
	"logscope/internal/export"
	"logscope/internal/filter"
	"logscope/internal/formats"
	"logscope/internal/model"
	"logscope/internal/registry"
	"logscope/internal/session"
	"logscope/internal/util/logx"
)

const sampleLines = 50

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case changedMsg:
		m.refreshConnections()
		m.refreshEntries(false)
		return m, m.waitChange()
	case noticeMsg:
		n := session.Notice(msg)
		m.lastMsg = n.String()
		m.notices = append(m.notices, n)
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}
		m.refreshConnections()
		return m, m.waitNotice()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.anyConnecting() {
			m.refreshConnections()
		}
		return m, cmd
	case opDoneMsg:
		m.busy--
		if msg.err != nil {
			m.lastMsg = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
			logx.Warnf("ui: %s: %v", msg.op, msg.err)
		} else {
			m.lastMsg = msg.op + " ok"
		}
		m.refreshConnections()
		m.refreshEntries(false)
		return m, nil
	case readOnceMsg:
		m.busy--
		if msg.err != nil {
			m.lastMsg = fmt.Sprintf("read %s failed: %v", msg.name, msg.err)
			return m, nil
		}
		var b strings.Builder
		for _, e := range msg.entries {
			b.WriteString(m.renderEntry(e, false))
			b.WriteByte('\n')
		}
		m.openModal(modalReadOnce, fmt.Sprintf("%s (%d lines)", msg.name, msg.total), strings.TrimRight(b.String(), "\n"))
		return m, nil
	case draftMsg:
		m.busy--
		if msg.err != nil {
			m.lastMsg = "draft failed: " + msg.err.Error()
			return m, nil
		}
		if err := m.app.Formats.SetActive(msg.def.ID); err != nil {
			m.lastMsg = err.Error()
		} else {
			m.lastMsg = "drafted format " + msg.def.Name
		}
		m.refreshEntries(true)
		if m.modalActive && m.modalKind == modalFormats {
			m.openFormatsModal()
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.modalActive {
			return m.updateModal(msg)
		}
		if m.inlineMode != inlineNone {
			return m.updateInline(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model) resize(w, h int) {
	m.termWidth, m.termHeight = w, h
	tblH := h / 3
	if tblH < 3 {
		tblH = 3
	}
	m.connTbl.SetHeight(tblH)
	m.connTbl.SetWidth(w)
	m.connTbl.SetColumns(connColumns(w))
	// pane titles and the status line
	streamH := h - tblH - 3
	if streamH < 1 {
		streamH = 1
	}
	m.stream.Width = w
	m.stream.Height = streamH
	m.input.Width = w - len(m.input.Prompt) - 2
	m.refreshConnections()
	m.rebuildStream()
	if m.modalActive {
		m.resizeModal()
	}
}

func (m *Model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modalKind {
	case modalHelp:
		switch {
		case msg.Type == tea.KeyUp:
			if m.helpSel > 0 {
				m.helpSel--
			}
		case msg.Type == tea.KeyDown:
			if m.helpSel+1 < len(m.helpItems) {
				m.helpSel++
			}
		case msg.Type == tea.KeyEnter:
			m.modalActive = false
			if len(m.helpItems) > 0 {
				return m, keyCmd(m.helpItems[m.helpSel].key)
			}
		case msg.Type == tea.KeyEsc, keyMatches(msg, m.keymap.Quit), keyMatches(msg, m.keymap.Help):
			m.modalActive = false
		}
		return m, nil
	case modalFormats:
		return m.updateFormatsModal(msg)
	}

	if msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter {
		m.modalActive = false
		return m, nil
	}
	if msg.String() == "c" && (m.modalKind == modalRaw || m.modalKind == modalReadOnce || m.modalKind == modalStats) {
		copyToClipboard(m.modalBody)
		m.lastMsg = "copied to clipboard"
		return m, nil
	}
	var cmd tea.Cmd
	m.modalVP, cmd = m.modalVP.Update(msg)
	return m, cmd
}

func (m *Model) updateFormatsModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var sel model.LogFormatDefinition
	hasSel := m.formatSel >= 0 && m.formatSel < len(m.formatItems)
	if hasSel {
		sel = m.formatItems[m.formatSel]
	}
	switch {
	case msg.Type == tea.KeyEsc || msg.String() == "q":
		m.modalActive = false
	case msg.Type == tea.KeyUp:
		if m.formatSel > 0 {
			m.formatSel--
		}
	case msg.Type == tea.KeyDown:
		if m.formatSel+1 < len(m.formatItems) {
			m.formatSel++
		}
	case msg.Type == tea.KeyEnter && hasSel:
		if err := m.app.Formats.SetActive(sel.ID); err != nil {
			m.lastMsg = err.Error()
			break
		}
		m.lastMsg = "format " + sel.Name + " active"
		m.modalActive = false
		m.refreshEntries(true)
	case msg.String() == "u":
		_ = m.app.Formats.SetActive("")
		m.lastMsg = "no active format"
		m.refreshEntries(true)
	case msg.String() == "x" && hasSel:
		if err := m.app.Formats.Delete(sel.ID); err != nil {
			m.lastMsg = err.Error()
			break
		}
		m.lastMsg = "deleted format " + sel.Name
		m.openFormatsModal()
		m.refreshEntries(true)
	case msg.String() == "n":
		m.modalActive = false
		return m, m.startInline(inlineAddFormat, "format (name | pattern | level=2,message=3): ", "")
	case msg.String() == "s":
		g := detect.Suggest(m.sample(), m.app.Formats.List())
		if !g.Found() {
			m.lastMsg = "no format matches the current stream"
			break
		}
		if err := m.app.Formats.SetActive(g.FormatID); err != nil {
			m.lastMsg = err.Error()
			break
		}
		m.lastMsg = fmt.Sprintf("detected %s (%.0f%%)", g.Name, g.Confidence*100)
		m.refreshEntries(true)
	case msg.String() == "a":
		sample := m.sample()
		if len(sample) == 0 {
			m.lastMsg = "nothing to draft from, activate a connection first"
			break
		}
		m.busy++
		m.lastMsg = "drafting format..."
		return m, m.draftCmd(sample)
	}
	return m, nil
}

func (m *Model) startInline(mode inlineMode, prompt, value string) tea.Cmd {
	m.inlineMode = mode
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) updateInline(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inlineMode = inlineNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		mode := m.inlineMode
		v := strings.TrimSpace(m.input.Value())
		m.inlineMode = inlineNone
		m.input.Blur()
		return m, m.applyInline(mode, v)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) applyInline(mode inlineMode, v string) tea.Cmd {
	switch mode {
	case inlineSearch:
		if v == "" {
			m.searchActive = false
			m.searchPattern = ""
			return nil
		}
		m.searchActive = true
		m.searchPattern, m.searchRegex = splitQuery(v)
		m.searchNext()
	case inlineConnFilter:
		m.connFilter = v
		m.refreshConnections()
	case inlineFilter:
		c := m.criteria
		c.Query, c.UseRegex = splitQuery(v)
		m.setCriteria(c)
	case inlineLevels:
		c := m.criteria
		c.Levels = filter.ParseLevels(v)
		m.setCriteria(c)
	case inlineExpr:
		c := m.criteria
		c.Expr = v
		m.setCriteria(c)
	case inlineAddConn:
		if v == "" {
			return nil
		}
		c, err := registry.ParseURL(v)
		if err != nil {
			m.lastMsg = err.Error()
			return nil
		}
		if !m.app.Streamable(c.Kind) {
			m.lastMsg = fmt.Sprintf("%s connections are not supported yet (use %s)", c.Kind, supportedSchemes)
			return nil
		}
		added, err := m.app.Connections.Add(c)
		if err != nil {
			m.lastMsg = err.Error()
			return nil
		}
		m.lastMsg = "added " + added.Name
		m.refreshConnections()
		m.selectConn(added.ID)
	case inlineAddFormat:
		if v == "" {
			return nil
		}
		sample := firstRecordLine(m.sess.View().Display)
		def, err := parseFormatInput(v, sample)
		if err != nil {
			m.lastMsg = err.Error()
			return nil
		}
		if sample != "" {
			if res := formats.Test(def, sample); !res.OK {
				m.lastMsg = "format rejected: " + res.Reason
				return nil
			}
		}
		id, err := m.app.Formats.Add(def)
		if err != nil {
			m.lastMsg = err.Error()
			return nil
		}
		_ = m.app.Formats.SetActive(id)
		m.lastMsg = "format " + def.Name + " saved and active"
		m.refreshEntries(true)
	case inlineExport:
		m.exportTo(v)
	}
	return nil
}

func (m *Model) setCriteria(c filter.Criteria) {
	ev, err := filter.NewEvaluator(c)
	if err != nil {
		m.lastMsg = err.Error()
		return
	}
	m.criteria = c
	m.eval = ev
	m.applyFilter()
}

func (m *Model) exportTo(path string) {
	if path == "" {
		return
	}
	format := m.app.Cfg.ExportFormat
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		format = "csv"
	case ".json", ".ndjson", ".jsonl":
		format = "ndjson"
	}
	if format == "" {
		format = "csv"
	}
	if err := export.Write(format, path, m.filtered); err != nil {
		m.lastMsg = "export failed: " + err.Error()
		return
	}
	m.lastMsg = fmt.Sprintf("exported %d entries to %s", len(m.filtered), path)
}

func (m *Model) selectConn(id string) {
	for i, c := range m.conns {
		if c.ID == id {
			m.connTbl.SetCursor(i)
			return
		}
	}
}

// sample returns the tail of the active display for format detection.
func (m *Model) sample() []string {
	var out []string
	for _, l := range strings.Split(m.sess.View().Display, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	if len(out) > sampleLines {
		out = out[len(out)-sampleLines:]
	}
	return out
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := m.keymap
	confirm := m.confirmDelete
	m.confirmDelete = ""

	switch {
	case keyMatches(msg, km.Quit):
		return m, tea.Quit
	case keyMatches(msg, km.Help):
		m.openHelpModal()
		return m, nil
	case keyMatches(msg, km.SwitchPane):
		if m.pane == paneConnections {
			m.pane = paneStream
			m.connTbl.Blur()
		} else {
			m.pane = paneConnections
			m.connTbl.Focus()
		}
		return m, nil
	case keyMatches(msg, km.Formats):
		m.openFormatsModal()
		return m, nil
	case keyMatches(msg, km.Notices):
		m.openNoticesModal()
		return m, nil
	case keyMatches(msg, km.AppLogs):
		m.openAppLogsModal()
		return m, nil
	case keyMatches(msg, km.Stats):
		m.openStatsModal()
		return m, nil
	case keyMatches(msg, km.Filter):
		q := m.criteria.Query
		if m.criteria.UseRegex {
			q = "/" + q + "/"
		}
		return m, m.startInline(inlineFilter, "filter: ", q)
	case keyMatches(msg, km.Levels):
		lv := make([]string, 0, len(m.criteria.Levels))
		for l := range m.criteria.Levels {
			lv = append(lv, l)
		}
		return m, m.startInline(inlineLevels, "levels: ", strings.Join(sortedStrings(lv), ","))
	case keyMatches(msg, km.Expr):
		return m, m.startInline(inlineExpr, "expr: ", m.criteria.Expr)
	case keyMatches(msg, km.ClearFilter):
		m.setCriteria(filter.Criteria{})
		m.lastMsg = "filters cleared"
		return m, nil
	case keyMatches(msg, km.Export):
		return m, m.startInline(inlineExport, "export to: ", "")
	}

	if m.pane == paneConnections {
		return m.updateConnections(msg, confirm)
	}
	return m.updateStream(msg)
}

func (m *Model) updateConnections(msg tea.KeyMsg, confirm string) (tea.Model, tea.Cmd) {
	km := m.keymap
	switch {
	case keyMatches(msg, km.AddConn):
		return m, m.startInline(inlineAddConn, "url: ", "")
	case keyMatches(msg, km.Search):
		return m, m.startInline(inlineConnFilter, "connections: ", m.connFilter)
	}
	c, ok := m.selectedConn()
	switch {
	case !ok:
	case keyMatches(msg, km.Activate):
		m.sess.Activate(c.ID)
		m.follow = true
		m.refreshConnections()
		m.refreshEntries(true)
		return m, nil
	case keyMatches(msg, km.Connect):
		return m, m.opCmd("connect "+c.Name, func() error { return m.sess.Connect(m.ctx, c.ID) })
	case keyMatches(msg, km.Disconnect):
		return m, m.opCmd("disconnect "+c.Name, func() error { return m.sess.Disconnect(m.ctx, c.ID) })
	case keyMatches(msg, km.Delete):
		if confirm != c.ID {
			m.confirmDelete = c.ID
			m.lastMsg = "press " + keyLabel(km.Delete) + " again to delete " + c.Name
			return m, nil
		}
		return m, m.opCmd("delete "+c.Name, func() error { return m.sess.Delete(m.ctx, c.ID) })
	case keyMatches(msg, km.ReadOnce):
		m.busy++
		m.lastMsg = "reading " + c.Name + "..."
		return m, m.readOnceCmd(c.Name)
	}
	switch msg.Type {
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown, tea.KeyHome, tea.KeyEnd:
		var cmd tea.Cmd
		m.connTbl, cmd = m.connTbl.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateStream(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := m.keymap
	switch {
	case keyMatches(msg, km.Search):
		return m, m.startInline(inlineSearch, "search: ", "")
	case keyMatches(msg, km.SearchNext):
		m.searchNext()
	case keyMatches(msg, km.SearchPrev):
		m.searchPrev()
	case keyMatches(msg, km.Top):
		m.moveCursor(0)
	case keyMatches(msg, km.Bottom):
		m.moveCursor(len(m.filtered) - 1)
	case keyMatches(msg, km.Follow):
		m.follow = !m.follow
		if m.follow {
			m.moveCursor(len(m.filtered) - 1)
		}
	case keyMatches(msg, km.ViewRaw):
		m.openRawModal()
	case keyMatches(msg, km.CopyLine):
		if m.cursor >= 0 && m.cursor < len(m.filtered) {
			copyToClipboard(m.filtered[m.cursor].Raw)
			m.lastMsg = "copied entry"
		}
	case msg.Type == tea.KeyUp:
		m.moveCursor(m.cursor - 1)
	case msg.Type == tea.KeyDown:
		m.moveCursor(m.cursor + 1)
	case msg.Type == tea.KeyPgUp:
		m.moveCursor(m.cursor - m.stream.Height)
	case msg.Type == tea.KeyPgDown:
		m.moveCursor(m.cursor + m.stream.Height)
	}
	return m, nil
}

func (m *Model) opCmd(op string, fn func() error) tea.Cmd {
	m.busy++
	m.lastMsg = op + "..."
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn()}
	}
}

func (m *Model) readOnceCmd(name string) tea.Cmd {
	ctx, a := m.ctx, m.app
	return func() tea.Msg {
		entries, res, err := a.ReadOnce(ctx, name)
		return readOnceMsg{name: name, entries: entries, total: res.TotalLines, err: err}
	}
}

func (m *Model) draftCmd(sample []string) tea.Cmd {
	ctx, a := m.ctx, m.app
	return func() tea.Msg {
		def, err := a.DraftFormat(ctx, sample)
		return draftMsg{def: def, err: err}
	}
}
