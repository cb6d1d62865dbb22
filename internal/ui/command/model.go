package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Name returns the first word of the command.
func (c CommandMsg) Name() string {
	fields := strings.Fields(string(c))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Args returns the words after the command name.
func (c CommandMsg) Args() []string {
	fields := strings.Fields(string(c))
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

// Command describes an entry shown in the palette.
type Command struct {
	Name string
	Help string
}

// Commands lists the palette commands in display order.
var Commands = []Command{
	{"refresh", "reload every view"},
	{"filter", "filter <all|done|todo|today|soon|high|medium|low>"},
	{"sort", "sort <created_at|due_date|priority>"},
	{"done", "mark every listed todo done"},
	{"clear-done", "move done todos to the trash"},
	{"categories", "manage categories"},
	{"trash", "open the trash"},
	{"account", "create an account (admin)"},
	{"logout", "sign out"},
	{"quit", "exit"},
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			cmd := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if cmd != "" {
				return m, func() tea.Msg {
					return CommandMsg(cmd)
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	lines := []string{title, input, ""}
	for _, c := range m.suggestions() {
		lines = append(lines, theme.HelpStyle.Render(c.Name+"  "+c.Help))
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// suggestions returns the commands whose name starts with the typed word.
func (m Model) suggestions() []Command {
	prefix := CommandMsg(m.input.Value()).Name()
	var out []Command
	for _, c := range Commands {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
