package ui

import tea "github.com/charmbracelet/bubbletea"

type KeyMap struct {
	Activate    tea.Key
	Connect     tea.Key
	Disconnect  tea.Key
	Delete      tea.Key
	AddConn     tea.Key
	ReadOnce    tea.Key
	Formats     tea.Key
	Search      tea.Key
	SearchNext  tea.Key
	SearchPrev  tea.Key
	Filter      tea.Key
	Levels      tea.Key
	Expr        tea.Key
	ClearFilter tea.Key
	Stats       tea.Key
	Export      tea.Key
	ViewRaw     tea.Key
	CopyLine    tea.Key
	AppLogs     tea.Key
	Notices     tea.Key
	Follow      tea.Key
	Top         tea.Key
	Bottom      tea.Key
	SwitchPane  tea.Key
	Help        tea.Key
	Quit        tea.Key
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Activate:    tea.Key{Type: tea.KeyEnter},
		Connect:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'c'}},
		Disconnect:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'d'}},
		Delete:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'x'}},
		AddConn:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'a'}},
		ReadOnce:    tea.Key{Type: tea.KeyRunes, Runes: []rune{'r'}},
		Formats:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'p'}},
		Search:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'/'}},
		SearchNext:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'n'}},
		SearchPrev:  tea.Key{Type: tea.KeyRunes, Runes: []rune{'N'}},
		Filter:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'f'}},
		Levels:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'l'}},
		Expr:        tea.Key{Type: tea.KeyRunes, Runes: []rune{'E'}},
		ClearFilter: tea.Key{Type: tea.KeyRunes, Runes: []rune{'F'}},
		Stats:       tea.Key{Type: tea.KeyRunes, Runes: []rune{'s'}},
		Export:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'e'}},
		ViewRaw:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'v'}},
		CopyLine:    tea.Key{Type: tea.KeyRunes, Runes: []rune{'y'}},
		AppLogs:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'L'}},
		Notices:     tea.Key{Type: tea.KeyRunes, Runes: []rune{'M'}},
		Follow:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'t'}},
		Top:         tea.Key{Type: tea.KeyRunes, Runes: []rune{'g'}},
		Bottom:      tea.Key{Type: tea.KeyRunes, Runes: []rune{'G'}},
		SwitchPane:  tea.Key{Type: tea.KeyTab},
		Help:        tea.Key{Type: tea.KeyRunes, Runes: []rune{'?'}},
		Quit:        tea.Key{Type: tea.KeyRunes, Runes: []rune{'q'}},
	}
}

func keyMatches(msg tea.KeyMsg, k tea.Key) bool {
	if k.Type != tea.KeyRunes {
		return msg.Type == k.Type
	}
	if len(k.Runes) > 0 {
		return msg.String() == string(k.Runes)
	}
	return false
}
