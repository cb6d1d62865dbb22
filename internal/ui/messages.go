package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todosync/internal/mutation"
)

// MutationMsg carries the result of a mutation run from a tea.Cmd.
type MutationMsg struct {
	Result mutation.Result
}

// ErrorMsg reports a failed read that is not part of a refresh cycle.
type ErrorMsg struct {
	Op  string
	Err error
}

// RunMutation returns a tea.Cmd that runs fn with a bounded context and
// reports its result as a MutationMsg.
func RunMutation(timeout time.Duration, fn func(context.Context) mutation.Result) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return MutationMsg{Result: fn(ctx)}
	}
}
