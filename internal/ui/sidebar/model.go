// Package sidebar renders the quick filter counts, completion stats and
// categories next to the todo list.
package sidebar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/query"
	"github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/theme"
)

var (
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	labelStyle   = lipgloss.NewStyle().Foreground(theme.ColorGray)
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
)

// Model holds what the sidebar shows. It has no behavior of its own.
type Model struct {
	views  sync.Views
	active query.Filter
	user   *model.User
	width  int
}

// New creates a sidebar of the given width.
func New(width int) Model {
	return Model{width: width, active: query.FilterAll}
}

// SetViews replaces the view snapshot and the highlighted filter.
func (m *Model) SetViews(views sync.Views, active query.Filter) {
	m.views = views
	m.active = active
}

// SetUser sets the signed-in account shown at the top.
func (m *Model) SetUser(user *model.User) {
	m.user = user
}

// SetWidth updates the sidebar width.
func (m *Model) SetWidth(width int) {
	m.width = width
}

// count returns the quick count for a filter, or -1 for filters the
// overview does not count.
func count(c sync.QuickCounts, f query.Filter) int {
	switch f {
	case query.FilterAll:
		return c.All
	case query.FilterDone:
		return c.Done
	case query.FilterTodo:
		return c.Todo
	case query.FilterToday:
		return c.Today
	case query.FilterSoon:
		return c.Soon
	}
	return -1
}

// View renders the sidebar.
func (m Model) View() string {
	var lines []string

	if m.user != nil {
		name := m.user.Username
		if m.user.IsAdmin() {
			name += " (admin)"
		}
		lines = append(lines, sectionStyle.Render(name), "")
	}

	lines = append(lines, sectionStyle.Render("Filters"))
	for i, f := range query.Filters {
		label := fmt.Sprintf("%d %s", i+1, f)
		if n := count(m.views.Counts, f); n >= 0 {
			label = fmt.Sprintf("%-10s %3d", label, n)
		}
		if f == m.active {
			lines = append(lines, activeStyle.Render("▸ "+label))
		} else {
			lines = append(lines, labelStyle.Render("  "+label))
		}
	}

	stats := m.views.Stats.Normalized()
	lines = append(lines,
		"",
		sectionStyle.Render("Stats"),
		labelStyle.Render(fmt.Sprintf("total       %d", stats.TotalTodos)),
		labelStyle.Render(fmt.Sprintf("done today  %d", stats.TodayCompleted)),
		labelStyle.Render("week "+progressBar(stats.WeekCompletionRate, m.width-12)),
	)

	if len(m.views.Categories) > 0 {
		lines = append(lines, "", sectionStyle.Render("Categories"))
		for _, c := range m.views.Categories {
			lines = append(lines, "  "+theme.CategoryStyle(c.Color).Render(c.Name))
		}
	}

	return strings.Join(lines, "\n")
}

// progressBar renders rate in [0,1] as a bar followed by a percentage.
func progressBar(rate float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := int(rate*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled) +
		fmt.Sprintf(" %d%%", int(rate*100+0.5))
}
