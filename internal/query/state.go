// Package query holds the user-selected search text, filter and sort
// order, and translates them into todo list constraints.
package query

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/model"
)

// Filter is a quick filter key.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterDone   Filter = "done"
	FilterTodo   Filter = "todo"
	FilterToday  Filter = "today"
	FilterSoon   Filter = "soon"
	FilterHigh   Filter = "high"
	FilterMedium Filter = "medium"
	FilterLow    Filter = "low"
)

// Filters lists every filter key in display order.
var Filters = []Filter{
	FilterAll, FilterDone, FilterTodo, FilterToday,
	FilterSoon, FilterHigh, FilterMedium, FilterLow,
}

// ParseFilter validates a filter key.
func ParseFilter(s string) (Filter, error) {
	for _, f := range Filters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// SortKey is the field the filtered list is sorted by. The order is
// always descending.
type SortKey string

const (
	SortCreatedAt SortKey = "created_at"
	SortDueDate   SortKey = "due_date"
	SortPriority  SortKey = "priority"
)

// SortKeys lists every sort key in cycle order.
var SortKeys = []SortKey{SortCreatedAt, SortDueDate, SortPriority}

// ParseSortKey validates a sort key.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range SortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Next returns the sort key after k in cycle order.
func (k SortKey) Next() SortKey {
	for i, key := range SortKeys {
		if key == k {
			return SortKeys[(i+1)%len(SortKeys)]
		}
	}
	return SortCreatedAt
}

// State is a value snapshot of the query selection.
type State struct {
	Search string
	Filter Filter
	Sort   SortKey
}

// Default returns the state a new session starts with.
func Default() State {
	return State{Filter: FilterAll, Sort: SortCreatedAt}
}

// Keyword returns the trimmed search text.
func (s State) Keyword() string {
	return strings.TrimSpace(s.Search)
}

// Constraints translates the state into list parameters. The search
// keyword composes with the filter; neither overrides the other.
func (s State) Constraints() api.TodoQuery {
	q := api.TodoQuery{Keyword: s.Keyword()}
	switch s.Filter {
	case FilterDone:
		q.Status = model.StatusDone
	case FilterTodo:
		q.Status = model.StatusTodo
	case FilterToday:
		q.Status = model.StatusTodo
		q.Due = api.DueToday
	case FilterSoon:
		q.Status = model.StatusTodo
		q.Due = api.DueWeek
	case FilterHigh:
		q.Priority = model.PriorityHigh
	case FilterMedium:
		q.Priority = model.PriorityMedium
	case FilterLow:
		q.Priority = model.PriorityLow
	}
	return q
}

// ListQuery returns the full first-page request for the filtered view.
func (s State) ListQuery(pageSize int) api.TodoQuery {
	q := s.Constraints()
	q.Page = 1
	q.PageSize = pageSize
	q.SortBy = string(s.Sort)
	q.SortOrder = api.SortDesc
	return q
}

// Holder is the mutable query selection. Setters notify the change
// listener only when the value actually changes. Holder never fetches.
type Holder struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewHolder returns a Holder initialized to Default.
func NewHolder(onChange func(State)) *Holder {
	return &Holder{state: Default(), onChange: onChange}
}

// State returns the current selection.
func (h *Holder) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// SetSearch updates the search text.
func (h *Holder) SetSearch(text string) {
	h.update(func(s *State) { s.Search = text })
}

// SetFilter updates the filter key.
func (h *Holder) SetFilter(f Filter) {
	h.update(func(s *State) { s.Filter = f })
}

// SetSort updates the sort key.
func (h *Holder) SetSort(k SortKey) {
	h.update(func(s *State) { s.Sort = k })
}

// Reset restores Default without notifying; used when a new session
// starts.
func (h *Holder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = Default()
}

// update notifies while holding the lock so listeners see changes in the
// order they were made. onChange must not call back into the Holder.
func (h *Holder) update(apply func(*State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.state
	apply(&next)
	if next == h.state {
		return
	}
	h.state = next
	if h.onChange != nil {
		h.onChange(next)
	}
}
