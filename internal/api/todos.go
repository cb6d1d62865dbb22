package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/todosync/internal/model"
)

// Sort orders accepted by GET /todos.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Due filters accepted by GET /todos.
const (
	DueToday   = "today"
	DueWeek    = "week"
	DueOverdue = "overdue"
	DueNone    = "none"
)

// TodoQuery parameterizes GET /todos. Empty fields are not sent.
type TodoQuery struct {
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
	Keyword    string
	Status     string
	Priority   string
	Due        string
	CategoryID string
}

// Query converts q into URL parameters.
func (q TodoQuery) Query() Query {
	params := Query{
		"sort_by":     q.SortBy,
		"sort_order":  q.SortOrder,
		"keyword":     q.Keyword,
		"status":      q.Status,
		"priority":    q.Priority,
		"due":         q.Due,
		"category_id": q.CategoryID,
	}
	if q.Page > 0 {
		params["page"] = q.Page
	}
	if q.PageSize > 0 {
		params["page_size"] = q.PageSize
	}
	return params
}

// TodoInput is the body of POST /todos.
type TodoInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Priority    string      `json:"priority"`
	Status      string      `json:"status,omitempty"`
	DueDate     *model.Date `json:"due_date,omitempty"`
	CategoryID  *string     `json:"category_id,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
}

// TodoPatch is the body of PUT /todos/{id}. Nil fields are left unchanged
// by the service.
type TodoPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Priority    *string     `json:"priority,omitempty"`
	Status      *string     `json:"status,omitempty"`
	DueDate     *model.Date `json:"due_date,omitempty"`
	CategoryID  *string     `json:"category_id,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
}

// StatusPatch returns a patch that only changes the status.
func StatusPatch(status string) TodoPatch {
	return TodoPatch{Status: &status}
}

// IsEmpty reports whether the patch changes nothing.
func (p TodoPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.DueDate == nil && p.CategoryID == nil && len(p.Tags) == 0
}

// ListTodos fetches one page of todos.
func (c *Client) ListTodos(ctx context.Context, q TodoQuery) (*model.Page[model.Todo], error) {
	var page model.Page[model.Todo]
	if err := c.Get(ctx, "/todos", q.Query(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateTodo creates a todo and returns it as stored.
func (c *Client) CreateTodo(ctx context.Context, in TodoInput) (*model.Todo, error) {
	var todo model.Todo
	if err := c.Post(ctx, "/todos", in, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// UpdateTodo applies a partial update.
func (c *Client) UpdateTodo(ctx context.Context, id string, patch TodoPatch) (*model.Todo, error) {
	var todo model.Todo
	if err := c.Put(ctx, todoPath(id), patch, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// DeleteTodo moves a todo to the trash.
func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	return c.Delete(ctx, todoPath(id), nil)
}

// ClearDone moves every done todo to the trash.
func (c *Client) ClearDone(ctx context.Context) error {
	return c.Delete(ctx, "/todos/clear-done", nil)
}

// BatchStatus sets the status of several todos at once.
func (c *Client) BatchStatus(ctx context.Context, ids []string, status string) error {
	body := struct {
		IDs    []string `json:"ids"`
		Status string   `json:"status"`
	}{IDs: ids, Status: status}
	return c.Patch(ctx, "/todos/batch/status", body, nil)
}

// ListTrash fetches one page of deleted todos, most recently deleted first.
func (c *Client) ListTrash(ctx context.Context, page, pageSize int) (*model.Page[model.Todo], error) {
	var result model.Page[model.Todo]
	q := Query{"page": page, "page_size": pageSize}
	if err := c.Get(ctx, "/trash", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RestoreTodo brings a deleted todo back from the trash.
func (c *Client) RestoreTodo(ctx context.Context, id string) error {
	return c.Post(ctx, fmt.Sprintf("/trash/%s/restore", url.PathEscape(id)), nil, nil)
}

// PurgeTodo permanently removes a deleted todo.
func (c *Client) PurgeTodo(ctx context.Context, id string) error {
	return c.Delete(ctx, fmt.Sprintf("/trash/%s/purge", url.PathEscape(id)), nil)
}

// ClearTrash permanently removes every deleted todo.
func (c *Client) ClearTrash(ctx context.Context) error {
	return c.Delete(ctx, "/trash/clear", nil)
}

func todoPath(id string) string {
	return "/todos/" + url.PathEscape(id)
}
