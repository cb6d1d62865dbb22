package sync

import "github.com/nhle/todosync/internal/model"

// QuickCounts are the sidebar quick-category counts derived locally from
// the overview collection.
type QuickCounts struct {
	All   int
	Todo  int
	Done  int
	Today int
	Soon  int
}

// Soon window bounds relative to today, inclusive. This window is local to
// the sidebar and differs from the server's due=week filter.
const (
	soonFrom = -1
	soonTo   = 2
)

// CountQuick counts todos by quick category. A todo due today counts as
// Today, never as Soon.
func CountQuick(todos []model.Todo, today model.Date) QuickCounts {
	var c QuickCounts
	for _, t := range todos {
		c.All++
		if t.IsDone() {
			c.Done++
			continue
		}
		c.Todo++
		if !t.HasDueDate() {
			continue
		}
		due := *t.DueDate
		switch {
		case due.Equal(today):
			c.Today++
		case inSoonWindow(due, today):
			c.Soon++
		}
	}
	return c
}

func inSoonWindow(due, today model.Date) bool {
	return !due.Before(today.AddDays(soonFrom)) && !due.After(today.AddDays(soonTo))
}
