// Package help renders the shortcut, filter and command reference.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/query"
	"github.com/nhle/todosync/internal/theme"
	"github.com/nhle/todosync/internal/ui/command"
)

// filterNotes explains what each quick category matches.
var filterNotes = map[query.Filter]string{
	query.FilterAll:    "every todo",
	query.FilterDone:   "completed todos",
	query.FilterTodo:   "open todos",
	query.FilterToday:  "open and due today",
	query.FilterSoon:   "open and due this week",
	query.FilterHigh:   "high priority",
	query.FilterMedium: "medium priority",
	query.FilterLow:    "low priority",
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	h.Width = width - 4
	return Model{keys: k, help: h, width: width, height: height}
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	dim := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var filters strings.Builder
	for i, b := range m.keys.Filters() {
		f := query.Filters[i]
		fmt.Fprintf(&filters, "%s  %-7s %s\n", b.Help().Key, f, dim.Render(filterNotes[f]))
	}

	var cmds strings.Builder
	for _, c := range command.Commands {
		fmt.Fprintf(&cmds, ":%-11s %s\n", c.Name, dim.Render(c.Help))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		heading.Render("Keyboard Shortcuts"),
		"",
		m.help.View(m.keys),
		"",
		heading.Render("Filters"),
		filters.String(),
		heading.Render("Commands"),
		cmds.String(),
	)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
