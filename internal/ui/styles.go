package ui

import (
	"github.com/charmbracelet/lipgloss"

	"logscope/internal/model"
)

type Styles struct {
	Base       lipgloss.Style
	Status     lipgloss.Style
	PaneActive lipgloss.Style
	PaneIdle   lipgloss.Style
	Level      map[string]lipgloss.Style
	ConnStatus map[model.Status]lipgloss.Style
	Help       lipgloss.Style
	Error      lipgloss.Style
	Selected   lipgloss.Style
	PopupBox   lipgloss.Style
	PopupTitle lipgloss.Style
}

func NewStyles(dark bool) Styles {
	s := Styles{}
	if dark {
		s.Base = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		s.Status = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
		s.PaneActive = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
		s.PaneIdle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
		s.Help = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		s.PopupBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2)
		s.PopupTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	} else {
		s.Base = lipgloss.NewStyle()
		s.Status = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.PaneActive = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("27"))
		s.PaneIdle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.Help = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		s.PopupBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(1, 2)
		s.PopupTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("27"))
	}
	s.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.Selected = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220"))
	s.Level = map[string]lipgloss.Style{
		"TRACE": lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		"FATAL": lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Bold(true),
	}
	s.ConnStatus = map[model.Status]lipgloss.Style{
		model.StatusDisconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		model.StatusConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		model.StatusConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		model.StatusError:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
	return s
}

func (s Styles) level(lvl string) lipgloss.Style {
	if st, ok := s.Level[lvl]; ok {
		return st
	}
	return s.Base
}
