package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"logscope/internal/app"
	"logscope/internal/filter"
	"logscope/internal/model"
	"logscope/internal/session"
)

type pane int

const (
	paneConnections pane = iota
	paneStream
)

type modalKind int

const (
	modalNone modalKind = iota
	modalHelp
	modalRaw
	modalLogs
	modalNotices
	modalFormats
	modalReadOnce
	modalStats
)

type inlineMode int

const (
	inlineNone inlineMode = iota
	inlineSearch
	inlineConnFilter
	inlineFilter
	inlineLevels
	inlineExpr
	inlineAddConn
	inlineAddFormat
	inlineExport
)

const maxNotices = 100

type Model struct {
	ctx  context.Context
	app  *app.App
	sess *session.Manager

	// Connections pane
	pane       pane
	conns      []model.RemoteConnection
	connTbl    table.Model
	connFilter string
	// id awaiting a second delete key press
	confirmDelete string

	// Stream pane
	viewVersion uint64
	activeName  string
	entries     []model.LogEntry
	filtered    []model.LogEntry
	cursor      int
	follow      bool
	stream      viewport.Model

	// Filter
	criteria filter.Criteria
	eval     *filter.Evaluator

	// Search state (navigation)
	searchActive  bool
	searchPattern string
	searchRegex   bool

	// UI
	styles     Styles
	keymap     KeyMap
	input      textinput.Model
	inlineMode inlineMode
	spin       spinner.Model
	termWidth  int
	termHeight int
	busy       int
	lastMsg    string
	notices    []session.Notice

	// Modal popup
	modalActive bool
	modalKind   modalKind
	modalVP     viewport.Model
	modalTitle  string
	modalBody   string

	helpItems []helpItem
	helpSel   int

	formatItems []model.LogFormatDefinition
	formatSel   int
}

type helpItem struct {
	group string
	text  string
	key   tea.Key
}

// Messages

type changedMsg struct{}

type noticeMsg session.Notice

type opDoneMsg struct {
	op  string
	err error
}

type readOnceMsg struct {
	name    string
	entries []model.LogEntry
	total   int
	err     error
}

type draftMsg struct {
	def model.LogFormatDefinition
	err error
}

func keyCmd(k tea.Key) tea.Cmd {
	return func() tea.Msg {
		if k.Type == tea.KeyRunes {
			return tea.KeyMsg{Type: k.Type, Runes: k.Runes}
		}
		return tea.KeyMsg{Type: k.Type}
	}
}

func keyLabel(k tea.Key) string {
	switch k.Type {
	case tea.KeyRunes:
		if len(k.Runes) == 1 {
			r := k.Runes[0]
			if r == ' ' {
				return "space"
			}
			return string(r)
		}
		return strings.ToLower(string(k.Runes))
	case tea.KeyEnter:
		return "enter"
	case tea.KeyEsc:
		return "esc"
	case tea.KeyTab:
		return "tab"
	case tea.KeyUp:
		return "up"
	case tea.KeyDown:
		return "down"
	case tea.KeyPgUp:
		return "pgup"
	case tea.KeyPgDown:
		return "pgdown"
	default:
		return strings.ToLower(k.String())
	}
}
