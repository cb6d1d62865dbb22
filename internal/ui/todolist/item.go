package todolist

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/theme"
)

// TodoItem wraps a model.Todo so it can be used in a bubbles/list.
type TodoItem struct {
	Todo model.Todo
}

// FilterValue returns the string used for fuzzy filtering.
func (i TodoItem) FilterValue() string { return i.Todo.Title }

// Title returns the todo title for the list.
func (i TodoItem) Title() string { return i.Todo.Title }

// Description returns a short summary line for the list.
func (i TodoItem) Description() string {
	parts := []string{i.Todo.Status, i.Todo.Priority}
	if i.Todo.HasDueDate() {
		parts = append(parts, i.Todo.DueDate.String())
	}
	return strings.Join(parts, " | ")
}

// renderContext is shared by reference between the Model and its
// delegate so SetTodos updates are visible when rows are drawn.
type renderContext struct {
	categories model.CategoryIndex
	today      model.Date
}

// ItemDelegate implements list.ItemDelegate for rendering todo rows.
type ItemDelegate struct {
	ctx *renderContext
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list item line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(TodoItem)
	if !ok {
		return
	}
	fmt.Fprint(w, d.renderRow(it.Todo, index == m.Index()))
}

func (d ItemDelegate) renderRow(todo model.Todo, isSelected bool) string {
	prefix := "○"
	if todo.IsDone() {
		prefix = "✓"
	}

	priBadge := theme.PriorityStyle(todo.Priority).Render(priorityLabel(todo.Priority))

	categoryBadge := ""
	if c, ok := d.ctx.categories.Lookup(todo.CategoryID); ok {
		categoryBadge = " " + theme.CategoryStyle(c.Color).Render("#"+c.Name)
	}

	dueStr := ""
	if todo.HasDueDate() {
		badge := model.DueBadge(todo.DueDate, d.ctx.today)
		if todo.IsDone() {
			badge = model.DueNone
		}
		label := todo.DueDate.String()
		if badge != model.DueNone {
			label += " " + strings.ToUpper(badge)
		}
		dueStr = " " + theme.DueStyle(badge).Render(label)
	}

	line := fmt.Sprintf("%s %s %s%s%s", prefix, priBadge, todo.Title, categoryBadge, dueStr)

	if todo.IsDone() {
		line = theme.DimmedStyle.Render(line)
	}

	if isSelected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// priorityLabel returns a short label for the given priority level.
func priorityLabel(p string) string {
	switch p {
	case model.PriorityHigh:
		return "H"
	case model.PriorityMedium:
		return "M"
	case model.PriorityLow:
		return "L"
	default:
		return "?"
	}
}
