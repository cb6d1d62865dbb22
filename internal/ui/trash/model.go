// Package trash lists soft-deleted todos and restores or purges them.
package trash

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/mutation"
	"github.com/nhle/todosync/internal/theme"
	"github.com/nhle/todosync/internal/ui"
)

// pageSize is the number of trashed todos fetched per page.
const pageSize = 50

// CloseMsg signals the parent to close the trash view.
type CloseMsg struct{}

// Lister reads the trash.
type Lister interface {
	ListTrash(ctx context.Context, page, pageSize int) (*model.Page[model.Todo], error)
}

// Mutator restores and purges trashed todos.
type Mutator interface {
	Restore(ctx context.Context, id string) mutation.Result
	Purge(ctx context.Context, id string) mutation.Result
	EmptyTrash(ctx context.Context) mutation.Result
}

type trashMode int

const (
	modeList trashMode = iota
	modeConfirmPurge
	modeConfirmEmpty
)

type loadedMsg struct {
	page *model.Page[model.Todo]
	err  error
}

// Model is the Bubble Tea model for the trash view.
type Model struct {
	mode        trashMode
	lister      Lister
	mutator     Mutator
	timeout     time.Duration
	keys        *keys.KeyMap
	todos       []model.Todo
	total       int
	page        int
	selectedIdx int
	confirmForm *huh.Form
	confirm     *bool
	statusMsg   string
	loading     bool
	width       int
	height      int
}

// New creates a new trash view model.
func New(lister Lister, mutator Mutator, k *keys.KeyMap, timeout time.Duration, width, height int) Model {
	return Model{
		mode:    modeList,
		lister:  lister,
		mutator: mutator,
		timeout: timeout,
		keys:    k,
		page:    1,
		confirm: new(bool),
		width:   width, height: height,
	}
}

// Open resets the view to its first page and loads it.
func (m *Model) Open() tea.Cmd {
	m.mode = modeList
	m.page = 1
	m.selectedIdx = 0
	m.statusMsg = ""
	return m.Reload()
}

// Reload fetches the current page again.
func (m *Model) Reload() tea.Cmd {
	m.loading = true
	lister := m.lister
	page := m.page
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		p, err := lister.ListTrash(ctx, page, pageSize)
		return loadedMsg{page: p, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
			err := msg.err
			return m, func() tea.Msg { return ui.ErrorMsg{Op: "list-trash", Err: err} }
		}
		m.todos = msg.page.Items
		m.total = msg.page.Total
		if m.selectedIdx >= len(m.todos) {
			m.selectedIdx = max(len(m.todos)-1, 0)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeList:
			return m.handleListKey(msg)
		default:
			return m.updateConfirm(msg)
		}
	}

	if m.mode != modeList {
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.todos) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.todos)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.todos) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.todos) - 1
			}
		}
		return m, nil

	case msg.String() == "]":
		if m.page*pageSize < m.total {
			m.page++
			m.selectedIdx = 0
			cmd := m.Reload()
			return m, cmd
		}
		return m, nil

	case msg.String() == "[":
		if m.page > 1 {
			m.page--
			m.selectedIdx = 0
			cmd := m.Reload()
			return m, cmd
		}
		return m, nil

	case msg.String() == "r":
		if len(m.todos) == 0 {
			return m, nil
		}
		id := m.todos[m.selectedIdx].ID
		mut := m.mutator
		m.statusMsg = "Restoring..."
		return m, ui.RunMutation(m.timeout, func(ctx context.Context) mutation.Result {
			return mut.Restore(ctx, id)
		})

	case key.Matches(msg, m.keys.Delete):
		if len(m.todos) == 0 {
			return m, nil
		}
		*m.confirm = false
		m.confirmForm = m.buildConfirmForm(
			fmt.Sprintf("Permanently delete %q?", m.todos[m.selectedIdx].Title))
		m.mode = modeConfirmPurge
		return m, m.confirmForm.Init()

	case msg.String() == "E":
		if m.total == 0 {
			return m, nil
		}
		*m.confirm = false
		m.confirmForm = m.buildConfirmForm(
			fmt.Sprintf("Permanently delete all %d trashed todos?", m.total))
		m.mode = modeConfirmEmpty
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildConfirmForm(title string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description("This cannot be undone.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(m.confirm),
		),
	).WithWidth(min(max(m.width-4, 40), 100))
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		m.mode = modeList
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	switch m.confirmForm.State {
	case huh.StateCompleted:
		mode := m.mode
		m.mode = modeList
		if !*m.confirm {
			return m, nil
		}
		mut := m.mutator
		if mode == modeConfirmEmpty {
			m.statusMsg = "Emptying trash..."
			return m, ui.RunMutation(m.timeout, mut.EmptyTrash)
		}
		if m.selectedIdx >= len(m.todos) {
			return m, nil
		}
		id := m.todos[m.selectedIdx].ID
		m.statusMsg = "Deleting..."
		return m, ui.RunMutation(m.timeout, func(ctx context.Context) mutation.Result {
			return mut.Purge(ctx, id)
		})
	case huh.StateAborted:
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

// SetStatus shows msg under the list.
func (m *Model) SetStatus(msg string) {
	m.statusMsg = msg
}

// View renders the trash.
func (m Model) View() string {
	if m.mode != modeList && m.confirmForm != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.confirmForm.View())
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render(fmt.Sprintf("Trash (%d)", m.total)))
	b.WriteString("\n\n")

	switch {
	case m.loading && len(m.todos) == 0:
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render("Loading..."))
	case len(m.todos) == 0:
		emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
		b.WriteString(emptyStyle.Render("Trash is empty."))
	default:
		for i, t := range m.todos {
			deleted := ""
			if t.DeletedAt != nil {
				deleted = t.DeletedAt.Local().Format("Jan 02 15:04")
			}
			label := fmt.Sprintf("%s  %s", t.Title,
				lipgloss.NewStyle().Foreground(theme.ColorGray).Render(deleted))
			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(label))
			} else {
				b.WriteString(theme.ListItemStyle.Render(label))
			}
			b.WriteString("\n")
		}
		if m.total > pageSize {
			pages := (m.total + pageSize - 1) / pageSize
			b.WriteString(theme.HelpStyle.Render(fmt.Sprintf("\npage %d/%d", m.page, pages)))
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"r restore | d delete forever | E empty trash | [ ] page | esc back",
	))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
