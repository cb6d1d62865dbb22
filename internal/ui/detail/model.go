package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Action names carried by ActionMsg.
const (
	ActionEdit   = "edit"
	ActionToggle = "toggle"
	ActionDelete = "delete"
)

// ActionMsg signals the parent to execute an action on the shown todo.
type ActionMsg struct {
	Action string
	Todo   model.Todo
}

// Model is the todo detail view component.
type Model struct {
	todo       *model.Todo
	categories model.CategoryIndex
	today      model.Date
	viewport   viewport.Model
	keys       *keys.KeyMap
	width      int
	height     int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.todo != nil {
		todo := *m.todo
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(msg, m.keys.Edit):
			return m, action(ActionEdit, todo)
		case key.Matches(msg, m.keys.Toggle):
			return m, action(ActionToggle, todo)
		case key.Matches(msg, m.keys.Delete):
			return m, action(ActionDelete, todo)
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func action(name string, todo model.Todo) tea.Cmd {
	return func() tea.Msg { return ActionMsg{Action: name, Todo: todo} }
}

// View renders the detail view.
func (m Model) View() string {
	if m.todo == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No todo selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.todo == nil {
		return ""
	}

	todo := m.todo
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(todo.Title))

	statusBadge := theme.StatusStyle(todo.Status).Render(todo.Status)
	priBadge := theme.PriorityStyle(todo.Priority).Render(todo.Priority)
	badges := []string{statusBadge, "  ", priBadge}
	if c, ok := m.categories.Lookup(todo.CategoryID); ok {
		badges = append(badges, "  ", theme.CategoryStyle(c.Color).Render("#"+c.Name))
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, badges...))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("%-10s", label+":")), value)
	}

	if todo.HasDueDate() {
		badge := model.DueBadge(todo.DueDate, m.today)
		if todo.IsDone() {
			badge = model.DueNone
		}
		due := todo.DueDate.String()
		if badge != model.DueNone {
			due += " (" + badge + ")"
		}
		sections = append(sections, row("Due", theme.DueStyle(badge).Render(due)))
	}
	if len(todo.Tags) > 0 {
		sections = append(sections, row("Tags", valStyle.Render(strings.Join(todo.Tags, ", "))))
	}
	sections = append(sections, row("Created", valStyle.Render(formatTime(todo.CreatedAt))))
	sections = append(sections, row("Updated", valStyle.Render(formatTime(todo.UpdatedAt))))
	if todo.CompletedAt != nil {
		sections = append(sections, row("Completed", valStyle.Render(formatTime(*todo.CompletedAt))))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	descHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sections = append(sections, descHeaderStyle.Render("Description"))

	body := todo.Description
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// SetTodo updates the todo being displayed and re-renders the content.
func (m *Model) SetTodo(todo model.Todo, categories []model.Category, today model.Date) {
	m.todo = &todo
	m.categories = model.IndexCategories(categories)
	m.today = today
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Refresh re-renders the shown todo from the latest list, keeping the
// scroll position. It reports false when the todo is no longer listed.
func (m *Model) Refresh(todos []model.Todo, categories []model.Category, today model.Date) bool {
	if m.todo == nil {
		return false
	}
	for _, t := range todos {
		if t.ID == m.todo.ID {
			m.todo = &t
			m.categories = model.IndexCategories(categories)
			m.today = today
			m.viewport.SetContent(m.renderContent())
			return true
		}
	}
	return false
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
