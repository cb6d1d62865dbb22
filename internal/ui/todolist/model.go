package todolist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/query"
	"github.com/nhle/todosync/internal/theme"
)

// SelectedTodoMsg is sent when a user selects a todo to view details.
type SelectedTodoMsg struct {
	Todo model.Todo
}

// Model is the filtered todo list view. Search, filter and sort changes
// are written to the query Holder; the list itself only renders whatever
// SetTodos last delivered.
type Model struct {
	list        list.Model
	holder      *query.Holder
	keys        *keys.KeyMap
	ctx         *renderContext
	searchMode  bool
	searchInput textinput.Model
	total       int
	width       int
	height      int
}

// New creates a new todo list model.
func New(holder *query.Holder, k *keys.KeyMap, width, height int) Model {
	ctx := &renderContext{categories: model.CategoryIndex{}}
	l := list.New([]list.Item{}, ItemDelegate{ctx: ctx}, width, height-2)
	l.Title = "Todos"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search todos..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		holder:      holder,
		keys:        k,
		ctx:         ctx,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetTodos replaces the rendered rows with the latest filtered view.
func (m *Model) SetTodos(todos []model.Todo, total int, categories []model.Category, today model.Date) tea.Cmd {
	m.ctx.categories = model.IndexCategories(categories)
	m.ctx.today = today
	m.total = total

	items := make([]list.Item, len(todos))
	for i, t := range todos {
		items[i] = TodoItem{Todo: t}
	}
	m.list.Title = m.title()
	return m.list.SetItems(items)
}

// Selected returns the todo under the cursor.
func (m Model) Selected() (model.Todo, bool) {
	item, ok := m.list.SelectedItem().(TodoItem)
	if !ok {
		return model.Todo{}, false
	}
	return item.Todo, true
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Update handles messages for the todo list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode. Every
// keystroke updates the search text; the sync engine debounces fetches.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.Reset()
		m.holder.SetSearch("")
		m.list.Title = m.title()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.holder.SetSearch(m.searchInput.Value())
	m.list.Title = m.title()
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		todo, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedTodoMsg{Todo: todo}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.holder.State().Search)
		m.searchInput.CursorEnd()
		cmd := m.searchInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.CycleSort):
		m.holder.SetSort(m.holder.State().Sort.Next())
		m.list.Title = m.title()
		return m, nil
	}

	for i, b := range m.keys.Filters() {
		if key.Matches(msg, b) {
			m.holder.SetFilter(query.Filters[i])
			m.list.Title = m.title()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) title() string {
	state := m.holder.State()
	t := fmt.Sprintf("Todos · %s · by %s · %d", state.Filter, state.Sort, m.total)
	if kw := state.Keyword(); kw != "" {
		t += fmt.Sprintf(" · %q", kw)
	}
	return t
}

// View renders the todo list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no todos match.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	state := m.holder.State()
	if state.Keyword() != "" || state.Filter != query.FilterAll {
		return style.Render("No matching todos.\nPress 1 for all, esc to clear the search.")
	}

	return style.Render("No todos yet.\n\nPress n to add one.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
