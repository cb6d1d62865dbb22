// Package mutation applies todo and category changes through the REST API
// and refreshes the affected views once the service has accepted them.
// Views are never updated optimistically.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nhle/todosync/internal/api"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/session"
	"github.com/nhle/todosync/internal/sync"
)

// ErrTitleRequired is returned by Create when the title is blank.
var ErrTitleRequired = errors.New("mutation: title is required")

// ErrInvalidField is returned when a status or priority value is not one
// of the known values.
var ErrInvalidField = errors.New("mutation: invalid field value")

// Gateway is the write side of the REST API.
type Gateway interface {
	CreateTodo(ctx context.Context, in api.TodoInput) (*model.Todo, error)
	UpdateTodo(ctx context.Context, id string, patch api.TodoPatch) (*model.Todo, error)
	DeleteTodo(ctx context.Context, id string) error
	ClearDone(ctx context.Context) error
	BatchStatus(ctx context.Context, ids []string, status string) error
	RestoreTodo(ctx context.Context, id string) error
	PurgeTodo(ctx context.Context, id string) error
	ClearTrash(ctx context.Context) error
	CreateCategory(ctx context.Context, in api.CategoryInput) (*model.Category, error)
	UpdateCategory(ctx context.Context, id string, in api.CategoryInput) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// Refresher runs a refresh cycle over a set of views.
type Refresher interface {
	Refresh(ctx context.Context, set sync.ViewSet) sync.Event
}

// Classifier routes mutation failures.
type Classifier interface {
	Classify(err error) session.Verdict
}

// Draft holds the fields of a new todo.
type Draft struct {
	Title       string
	Description string
	Priority    string
	DueDate     *model.Date
	CategoryID  *string
}

// Result describes a completed mutation.
type Result struct {
	Op       string
	Todo     *model.Todo
	Category *model.Category
	// Refresh is the cycle run after the mutation succeeded. It is zero
	// when the mutation failed.
	Refresh sync.Event
	// Verdict classifies the mutation failure, if any.
	Verdict session.Verdict
	Err     error
}

// Coordinator applies mutations. Each call waits for the service and then
// for its refresh cycle before returning.
type Coordinator struct {
	gateway    Gateway
	refresher  Refresher
	classifier Classifier
	logger     *slog.Logger
}

// New returns a Coordinator.
func New(gateway Gateway, refresher Refresher, classifier Classifier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		gateway:    gateway,
		refresher:  refresher,
		classifier: classifier,
		logger:     logger,
	}
}

// Create submits a new todo. The title must be non-blank; priority
// defaults to medium.
func (c *Coordinator) Create(ctx context.Context, d Draft) Result {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return Result{Op: "create", Err: ErrTitleRequired, Verdict: session.Verdict{Message: "title is required"}}
	}
	priority := d.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return invalid("create", "priority", priority)
	}

	in := api.TodoInput{
		Title:       title,
		Description: d.Description,
		Priority:    priority,
		DueDate:     d.DueDate,
		CategoryID:  d.CategoryID,
	}
	return c.todo(ctx, "create", sync.MutationRefresh, func(ctx context.Context) (*model.Todo, error) {
		return c.gateway.CreateTodo(ctx, in)
	})
}

// Update applies a partial update.
func (c *Coordinator) Update(ctx context.Context, id string, patch api.TodoPatch) Result {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return Result{Op: "update", Err: ErrTitleRequired, Verdict: session.Verdict{Message: "title is required"}}
	}
	if patch.Priority != nil && !model.ValidPriority(*patch.Priority) {
		return invalid("update", "priority", *patch.Priority)
	}
	if patch.Status != nil && !model.ValidStatus(*patch.Status) {
		return invalid("update", "status", *patch.Status)
	}
	return c.todo(ctx, "update", sync.MutationRefresh, func(ctx context.Context) (*model.Todo, error) {
		return c.gateway.UpdateTodo(ctx, id, patch)
	})
}

// Toggle flips a todo between done and todo.
func (c *Coordinator) Toggle(ctx context.Context, t model.Todo) Result {
	patch := api.StatusPatch(t.ToggledStatus())
	return c.todo(ctx, "toggle", sync.MutationRefresh, func(ctx context.Context) (*model.Todo, error) {
		return c.gateway.UpdateTodo(ctx, t.ID, patch)
	})
}

// Delete moves a todo to the trash.
func (c *Coordinator) Delete(ctx context.Context, id string) Result {
	return c.run(ctx, "delete", sync.MutationRefresh, func(ctx context.Context) error {
		return c.gateway.DeleteTodo(ctx, id)
	})
}

// ClearDone deletes every done todo. Having none is not an error.
func (c *Coordinator) ClearDone(ctx context.Context) Result {
	return c.run(ctx, "clear-done", sync.MutationRefresh, c.gateway.ClearDone)
}

// SetStatus sets the status of several todos at once.
func (c *Coordinator) SetStatus(ctx context.Context, ids []string, status string) Result {
	if !model.ValidStatus(status) {
		return invalid("set-status", "status", status)
	}
	if len(ids) == 0 {
		return Result{Op: "set-status"}
	}
	return c.run(ctx, "set-status", sync.MutationRefresh, func(ctx context.Context) error {
		return c.gateway.BatchStatus(ctx, ids, status)
	})
}

// Restore brings a todo back from the trash.
func (c *Coordinator) Restore(ctx context.Context, id string) Result {
	return c.run(ctx, "restore", sync.MutationRefresh, func(ctx context.Context) error {
		return c.gateway.RestoreTodo(ctx, id)
	})
}

// Purge permanently deletes a trashed todo.
func (c *Coordinator) Purge(ctx context.Context, id string) Result {
	return c.run(ctx, "purge", sync.ViewStats, func(ctx context.Context) error {
		return c.gateway.PurgeTodo(ctx, id)
	})
}

// EmptyTrash permanently deletes every trashed todo.
func (c *Coordinator) EmptyTrash(ctx context.Context) Result {
	return c.run(ctx, "empty-trash", sync.ViewStats, c.gateway.ClearTrash)
}

// CreateCategory adds a category.
func (c *Coordinator) CreateCategory(ctx context.Context, in api.CategoryInput) Result {
	if strings.TrimSpace(in.Name) == "" {
		return Result{Op: "create-category", Err: fmt.Errorf("%w: name", ErrInvalidField), Verdict: session.Verdict{Message: "name is required"}}
	}
	return c.category(ctx, "create-category", func(ctx context.Context) (*model.Category, error) {
		return c.gateway.CreateCategory(ctx, in)
	})
}

// UpdateCategory changes a category.
func (c *Coordinator) UpdateCategory(ctx context.Context, id string, in api.CategoryInput) Result {
	return c.category(ctx, "update-category", func(ctx context.Context) (*model.Category, error) {
		return c.gateway.UpdateCategory(ctx, id, in)
	})
}

// DeleteCategory removes a category. Todos that referenced it lose their
// category, so the todo views are refreshed too.
func (c *Coordinator) DeleteCategory(ctx context.Context, id string) Result {
	return c.run(ctx, "delete-category", sync.CategoryRefresh, func(ctx context.Context) error {
		return c.gateway.DeleteCategory(ctx, id)
	})
}

func (c *Coordinator) todo(
	ctx context.Context,
	op string,
	set sync.ViewSet,
	call func(context.Context) (*model.Todo, error),
) Result {
	var todo *model.Todo
	res := c.run(ctx, op, set, func(ctx context.Context) error {
		var err error
		todo, err = call(ctx)
		return err
	})
	res.Todo = todo
	return res
}

func (c *Coordinator) category(
	ctx context.Context,
	op string,
	call func(context.Context) (*model.Category, error),
) Result {
	var category *model.Category
	res := c.run(ctx, op, sync.CategoryRefresh, func(ctx context.Context) error {
		var err error
		category, err = call(ctx)
		return err
	})
	res.Category = category
	return res
}

// run performs call and, only if it succeeded, refreshes set.
func (c *Coordinator) run(ctx context.Context, op string, set sync.ViewSet, call func(context.Context) error) Result {
	if err := call(ctx); err != nil {
		verdict := c.classifier.Classify(err)
		c.logger.Warn("mutation failed", "op", op, "error", err, "session_expired", verdict.SessionExpired)
		return Result{Op: op, Err: fmt.Errorf("%s: %w", op, err), Verdict: verdict}
	}

	c.logger.Debug("mutation applied", "op", op, "refresh", set.String())
	return Result{Op: op, Refresh: c.refresher.Refresh(ctx, set)}
}

func invalid(op, field, value string) Result {
	return Result{
		Op:      op,
		Err:     fmt.Errorf("%w: %s %q", ErrInvalidField, field, value),
		Verdict: session.Verdict{Message: fmt.Sprintf("invalid %s %q", field, value)},
	}
}
