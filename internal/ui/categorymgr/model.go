package categorymgr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/mutation"
	"github.com/nhle/todosync/internal/theme"
	"github.com/nhle/todosync/internal/ui"
)

// CloseMsg signals the parent to close the category view.
type CloseMsg struct{}

// Mutator applies category changes.
type Mutator interface {
	CreateCategory(ctx context.Context, in api.CategoryInput) mutation.Result
	UpdateCategory(ctx context.Context, id string, in api.CategoryInput) mutation.Result
	DeleteCategory(ctx context.Context, id string) mutation.Result
}

type categoryMode int

const (
	modeList categoryMode = iota
	modeForm
	modeConfirmDelete
)

type formBindings struct {
	name    string
	color   string
	order   string
	confirm bool
}

// Model is the Bubble Tea model for category management. The category
// list itself comes from the sync engine through SetCategories.
type Model struct {
	mode        categoryMode
	mutator     Mutator
	timeout     time.Duration
	keys        *keys.KeyMap
	categories  []model.Category
	selectedIdx int
	editingID   string
	isNew       bool
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a new category manager model.
func New(mutator Mutator, k *keys.KeyMap, timeout time.Duration, width, height int) Model {
	return Model{
		mode:    modeList,
		mutator: mutator,
		timeout: timeout,
		keys:    k,
		fb:      &formBindings{},
		width:   width, height: height,
	}
}

// SetCategories replaces the listed categories.
func (m *Model) SetCategories(categories []model.Category) {
	m.categories = categories
	if m.selectedIdx >= len(m.categories) {
		m.selectedIdx = max(len(m.categories)-1, 0)
	}
}

// SetStatus shows msg under the list.
func (m *Model) SetStatus(msg string) {
	m.statusMsg = msg
}

// Reset returns to list mode.
func (m *Model) Reset() {
	m.mode = modeList
	m.statusMsg = ""
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeList:
		return m.handleListKey(msg)
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Down):
		if len(m.categories) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.categories)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.categories) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.categories) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.isNew = true
		m.editingID = ""
		*m.fb = formBindings{color: "#5B9BD5", order: strconv.Itoa(len(m.categories))}
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Edit):
		if len(m.categories) == 0 {
			return m, nil
		}
		c := m.categories[m.selectedIdx]
		m.isNew = false
		m.editingID = c.ID
		*m.fb = formBindings{name: c.Name, color: c.Color, order: strconv.Itoa(c.Order)}
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Delete):
		if len(m.categories) == 0 {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Category name").
				Value(&m.fb.name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Color").
				Placeholder("#5B9BD5").
				Value(&m.fb.color),
			huh.NewInput().
				Title("Order").
				Value(&m.fb.order).
				Validate(func(s string) error {
					if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("order must be a number")
					}
					return nil
				}),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm() *huh.Form {
	name := ""
	if m.selectedIdx < len(m.categories) {
		name = m.categories[m.selectedIdx].Name
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete category %q?", name)).
				Description("Todos in this category will have none.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		m.mode = modeList
		m.statusMsg = "Saving..."
		return m, m.saveCategory()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	if m.confirmForm.State == huh.StateCompleted {
		m.mode = modeList
		if m.fb.confirm && m.selectedIdx < len(m.categories) {
			m.statusMsg = "Deleting..."
			return m, m.deleteCategory(m.categories[m.selectedIdx].ID)
		}
		return m, nil
	}
	if m.confirmForm.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

// View renders the category manager.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Categories"))
	b.WriteString("\n\n")

	if len(m.categories) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
		b.WriteString(emptyStyle.Render("No categories yet. Press 'n' to create one."))
	} else {
		for i, c := range m.categories {
			label := fmt.Sprintf("%2d  %s", c.Order, theme.CategoryStyle(c.Color).Render(c.Name))
			if c.IsSystem {
				label += " (system)"
			}

			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(label))
			} else {
				b.WriteString(theme.ListItemStyle.Render(label))
			}
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"n new | e edit | d delete | esc back",
	))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func (m Model) saveCategory() tea.Cmd {
	mut := m.mutator
	fb := *m.fb
	editID := m.editingID
	isNew := m.isNew

	order, _ := strconv.Atoi(strings.TrimSpace(fb.order))
	in := api.CategoryInput{
		Name:  strings.TrimSpace(fb.name),
		Color: strings.TrimSpace(fb.color),
		Order: &order,
	}
	return ui.RunMutation(m.timeout, func(ctx context.Context) mutation.Result {
		if isNew {
			return mut.CreateCategory(ctx, in)
		}
		return mut.UpdateCategory(ctx, editID, in)
	})
}

func (m Model) deleteCategory(id string) tea.Cmd {
	mut := m.mutator
	return ui.RunMutation(m.timeout, func(ctx context.Context) mutation.Result {
		return mut.DeleteCategory(ctx, id)
	})
}
