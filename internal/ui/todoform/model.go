package todoform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/mutation"
	"github.com/nhle/todosync/internal/theme"
)

// CreateMsg is dispatched when the form is submitted in create mode.
type CreateMsg struct {
	Draft mutation.Draft
}

// UpdateMsg is dispatched when the form is submitted in edit mode. Patch
// only carries the fields that changed.
type UpdateMsg struct {
	ID    string
	Patch api.TodoPatch
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	priority    string
	dueDate     string
	status      string
	categoryID  string
}

// Model is the Bubble Tea model for the todo create/edit form.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	editMode   bool
	original   model.Todo
	categories []model.Category
	width      int
	height     int
}

// New creates a new todo form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{priority: model.PriorityMedium, status: model.StatusTodo},
		width:  width,
		height: height,
	}
}

// SetCategories sets the options of the category selector.
func (m *Model) SetCategories(categories []model.Category) {
	m.categories = categories
}

// StartCreate initializes the form for creating a new todo.
func (m *Model) StartCreate() tea.Cmd {
	m.editMode = false
	m.original = model.Todo{}
	*m.fb = formBindings{priority: model.PriorityMedium, status: model.StatusTodo}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form for editing an existing todo.
func (m *Model) StartEdit(todo model.Todo) tea.Cmd {
	m.editMode = true
	m.original = todo
	*m.fb = formBindings{
		title:       todo.Title,
		description: todo.Description,
		priority:    todo.Priority,
		status:      todo.Status,
	}
	if todo.HasDueDate() {
		m.fb.dueDate = todo.DueDate.String()
	}
	if todo.CategoryID != nil {
		m.fb.categoryID = *todo.CategoryID
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the todo form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the todo form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Todo"
	if m.editMode {
		titleText = "Edit Todo"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("What needs to be done?").
			Value(&m.fb.title).
			Validate(validateRequired("Title")),
		huh.NewText().
			Title("Description").
			Placeholder("Optional details...").
			Value(&m.fb.description),
		huh.NewSelect[string]().
			Title("Priority").
			Options(
				huh.NewOption("High", model.PriorityHigh),
				huh.NewOption("Medium", model.PriorityMedium),
				huh.NewOption("Low", model.PriorityLow),
			).
			Value(&m.fb.priority),
		huh.NewInput().
			Title("Due Date").
			Placeholder("YYYY-MM-DD (optional)").
			Value(&m.fb.dueDate).
			Validate(validateOptionalDate),
		m.categoryField(),
	}

	if m.editMode {
		fields = append(fields,
			huh.NewSelect[string]().
				Title("Status").
				Options(
					huh.NewOption("Todo", model.StatusTodo),
					huh.NewOption("Done", model.StatusDone),
				).
				Value(&m.fb.status),
		)
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m *Model) categoryField() huh.Field {
	opts := []huh.Option[string]{
		huh.NewOption("None", ""),
	}
	for _, c := range m.categories {
		opts = append(opts, huh.NewOption(c.Name, c.ID))
	}
	return huh.NewSelect[string]().
		Title("Category").
		Options(opts...).
		Value(&m.fb.categoryID)
}

func (m Model) handleSubmit() tea.Cmd {
	fb := *m.fb
	var due *model.Date
	if d, err := model.ParseDate(fb.dueDate); err == nil && strings.TrimSpace(fb.dueDate) != "" {
		due = &d
	}
	var categoryID *string
	if fb.categoryID != "" {
		categoryID = &fb.categoryID
	}

	if !m.editMode {
		draft := mutation.Draft{
			Title:       fb.title,
			Description: fb.description,
			Priority:    fb.priority,
			DueDate:     due,
			CategoryID:  categoryID,
		}
		return func() tea.Msg { return CreateMsg{Draft: draft} }
	}

	patch := diff(m.original, fb, due, categoryID)
	id := m.original.ID
	return func() tea.Msg { return UpdateMsg{ID: id, Patch: patch} }
}

// diff builds a patch holding only the fields that differ from the todo
// the form was opened with.
func diff(orig model.Todo, fb formBindings, due *model.Date, categoryID *string) api.TodoPatch {
	var patch api.TodoPatch
	if title := strings.TrimSpace(fb.title); title != orig.Title {
		patch.Title = &title
	}
	if fb.description != orig.Description {
		patch.Description = &fb.description
	}
	if fb.priority != orig.Priority {
		patch.Priority = &fb.priority
	}
	if fb.status != orig.Status {
		patch.Status = &fb.status
	}
	if due != nil && (!orig.HasDueDate() || !orig.DueDate.Equal(*due)) {
		patch.DueDate = due
	}
	if categoryID != nil && (orig.CategoryID == nil || *orig.CategoryID != *categoryID) {
		patch.CategoryID = categoryID
	}
	return patch
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

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalDate(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := model.ParseDate(s); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}
