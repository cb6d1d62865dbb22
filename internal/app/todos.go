package app

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/mutation"
	"github.com/nhle/todosync/internal/query"
	"github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/ui"
	"github.com/nhle/todosync/internal/ui/command"
	"github.com/nhle/todosync/internal/ui/detail"
)

// mutate runs fn through the coordinator off the UI goroutine.
func (m Model) mutate(fn func(context.Context, *mutation.Coordinator) mutation.Result) tea.Cmd {
	c := m.deps.Coordinator
	return ui.RunMutation(m.deps.Timeout, func(ctx context.Context) mutation.Result {
		return fn(ctx, c)
	})
}

func (m Model) createTodo(d mutation.Draft) tea.Cmd {
	return m.mutate(func(ctx context.Context, c *mutation.Coordinator) mutation.Result {
		return c.Create(ctx, d)
	})
}

func (m Model) updateTodo(id string, patch api.TodoPatch) tea.Cmd {
	return m.mutate(func(ctx context.Context, c *mutation.Coordinator) mutation.Result {
		return c.Update(ctx, id, patch)
	})
}

func (m Model) clearDone() tea.Cmd {
	return m.mutate(func(ctx context.Context, c *mutation.Coordinator) mutation.Result {
		return c.ClearDone(ctx)
	})
}

// todoAction runs an action requested from the list or the detail view.
func (m *Model) todoAction(action string, todo model.Todo) tea.Cmd {
	switch action {
	case detail.ActionEdit:
		m.previousView = m.currentView
		m.currentView = ViewTodoEdit
		return m.todoFormView.StartEdit(todo)

	case detail.ActionToggle:
		return m.mutate(func(ctx context.Context, c *mutation.Coordinator) mutation.Result {
			return c.Toggle(ctx, todo)
		})

	case detail.ActionDelete:
		if m.currentView == ViewDetail {
			m.currentView = ViewList
		}
		id := todo.ID
		return m.mutate(func(ctx context.Context, c *mutation.Coordinator) mutation.Result {
			return c.Delete(ctx, id)
		})
	}
	return nil
}

// markListedDone sets every todo of the filtered view to done.
func (m Model) markListedDone() tea.Cmd {
	ids := make([]string, 0, len(m.views.Filtered))
	for _, t := range m.views.Filtered {
		if !t.IsDone() {
			ids = append(ids, t.ID)
		}
	}
	return m.mutate(func(ctx context.Context, c *mutation.Coordinator) mutation.Result {
		return c.SetStatus(ctx, ids, model.StatusDone)
	})
}

// refreshAll runs a manual refresh of every view. Its event arrives
// through the engine's channel.
func (m Model) refreshAll() tea.Cmd {
	engine := m.deps.Engine
	timeout := m.deps.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		engine.Refresh(ctx, sync.AllViews)
		return nil
	}
}

// opLabels are the status bar texts shown after a successful mutation.
var opLabels = map[string]string{
	"create":          "Todo added",
	"update":          "Todo saved",
	"toggle":          "Todo updated",
	"delete":          "Moved to trash",
	"clear-done":      "Done todos cleared",
	"set-status":      "Todos updated",
	"restore":         "Todo restored",
	"purge":           "Todo deleted forever",
	"empty-trash":     "Trash emptied",
	"create-category": "Category added",
	"update-category": "Category saved",
	"delete-category": "Category deleted",
}

// onMutation reports a mutation result. The views were already refreshed
// by the coordinator; their event arrives separately.
func (m *Model) onMutation(res mutation.Result) tea.Cmd {
	if res.Err != nil {
		if res.Verdict.Stale {
			return nil
		}
		if res.Verdict.SessionExpired {
			return m.onSessionExpired(res.Verdict.Message)
		}
		msg := res.Verdict.Message
		if msg == "" {
			msg = res.Err.Error()
		}
		m.errMsg = msg
		m.categoryView.SetStatus("")
		m.trashView.SetStatus("")
		return nil
	}

	label := opLabels[res.Op]
	m.errMsg = ""
	m.statusMsg = label

	switch res.Op {
	case "restore", "purge", "empty-trash":
		m.trashView.SetStatus(label)
		return tea.Batch(m.trashView.Reload(), m.applySnapshot())
	case "create-category", "update-category", "delete-category":
		m.categoryView.SetStatus(label)
	}
	return m.applySnapshot()
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(cmd command.CommandMsg) tea.Cmd {
	if m.user == nil {
		return nil
	}
	args := cmd.Args()

	switch cmd.Name() {
	case "refresh", "sync":
		return m.refreshAll()
	case "quit", "q":
		return m.quit()
	case "filter":
		if len(args) != 1 {
			m.errMsg = "usage: filter <name>"
			return nil
		}
		f, err := query.ParseFilter(args[0])
		if err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.deps.Holder.SetFilter(f)
	case "sort":
		if len(args) != 1 {
			m.errMsg = "usage: sort <key>"
			return nil
		}
		k, err := query.ParseSortKey(args[0])
		if err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.deps.Holder.SetSort(k)
	case "search":
		m.deps.Holder.SetSearch(strings.Join(args, " "))
	case "done":
		return m.markListedDone()
	case "clear-done":
		return m.clearDone()
	case "new", "todo":
		m.previousView = ViewList
		m.currentView = ViewTodoCreate
		return m.todoFormView.StartCreate()
	case "categories":
		m.openCategories()
	case "trash":
		m.currentView = ViewTrash
		return m.trashView.Open()
	case "account":
		return m.openAccount()
	case "logout":
		return m.logout()
	default:
		m.errMsg = fmt.Sprintf("unknown command %q", cmd.Name())
	}
	return nil
}
