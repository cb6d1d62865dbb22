package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/todosync/internal/model"
)

// todoRow is a todos row; tags are stored as a JSON array.
type todoRow struct {
	model.Todo
	UserID   string `db:"user_id"`
	TagsJSON string `db:"tags"`
}

const todoColumns = `id, user_id, title, description, status, priority, due_date,
	category_id, tags, is_deleted, deleted_at, completed_at, created_at, updated_at`

func (r todoRow) todo() (model.Todo, error) {
	t := r.Todo
	if r.TagsJSON != "" {
		if err := json.Unmarshal([]byte(r.TagsJSON), &t.Tags); err != nil {
			return t, fmt.Errorf("decoding tags of todo %s: %w", t.ID, err)
		}
	}
	return t, nil
}

func rowsToTodos(rows []todoRow) ([]model.Todo, error) {
	todos := make([]model.Todo, 0, len(rows))
	for _, r := range rows {
		t, err := r.todo()
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	return string(b), nil
}

// CreateTodo inserts a new todo owned by userID.
func (s *SQLiteStore) CreateTodo(ctx context.Context, userID string, todo model.Todo) (*model.Todo, error) {
	if strings.TrimSpace(todo.Title) == "" {
		return nil, fmt.Errorf("todo title must not be empty")
	}
	if todo.ID == "" {
		todo.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	todo.IsDeleted = false
	todo.DeletedAt = nil
	if todo.Status == "" {
		todo.Status = model.StatusTodo
	}
	if todo.Priority == "" {
		todo.Priority = model.PriorityMedium
	}
	if todo.Status == model.StatusDone && todo.CompletedAt == nil {
		todo.CompletedAt = &now
	}
	tags, err := encodeTags(todo.Tags)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO todos (
			id, user_id, title, description, status, priority,
			due_date, category_id, tags, is_deleted,
			completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		todo.ID, userID, todo.Title, todo.Description, todo.Status, todo.Priority,
		todo.DueDate, todo.CategoryID, tags,
		todo.CompletedAt, todo.CreatedAt, todo.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating todo: %w", err)
	}
	return s.GetTodo(ctx, userID, todo.ID)
}

// GetTodo retrieves a single todo, deleted or not.
func (s *SQLiteStore) GetTodo(ctx context.Context, userID, id string) (*model.Todo, error) {
	var row todoRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+todoColumns+" FROM todos WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return nil, notFound(err, "todo", id)
	}
	t, err := row.todo()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTodo applies the non-nil fields of changes. Moving a todo to done
// stamps completed_at the first time.
func (s *SQLiteStore) UpdateTodo(
	ctx context.Context,
	userID, id string,
	changes TodoChanges,
) (*model.Todo, error) {
	todo, err := s.GetTodo(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if changes.Title != nil {
		if strings.TrimSpace(*changes.Title) == "" {
			return nil, fmt.Errorf("todo title must not be empty")
		}
		todo.Title = *changes.Title
	}
	if changes.Description != nil {
		todo.Description = *changes.Description
	}
	if changes.Priority != nil {
		todo.Priority = *changes.Priority
	}
	if changes.Status != nil {
		todo.Status = *changes.Status
	}
	if changes.DueDate != nil {
		todo.DueDate = changes.DueDate
	}
	if changes.CategoryID != nil {
		todo.CategoryID = changes.CategoryID
	}
	if changes.Tags != nil {
		todo.Tags = changes.Tags
	}

	now := time.Now().UTC()
	todo.UpdatedAt = now
	if todo.Status == model.StatusDone && todo.CompletedAt == nil {
		todo.CompletedAt = &now
	}
	tags, err := encodeTags(todo.Tags)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE todos SET
			title = ?, description = ?, status = ?, priority = ?,
			due_date = ?, category_id = ?, tags = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		todo.Title, todo.Description, todo.Status, todo.Priority,
		todo.DueDate, todo.CategoryID, tags,
		todo.CompletedAt, todo.UpdatedAt,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating todo %s: %w", id, err)
	}
	if err := requireRows(result, "todo", id); err != nil {
		return nil, err
	}
	return todo, nil
}

// todoConditions builds the WHERE clause shared by ListTodos and its count.
func todoConditions(userID string, filter TodoFilter) (string, []interface{}) {
	conditions := []string{"user_id = ?"}
	args := []interface{}{userID}
	if !filter.IncludeDeleted {
		conditions = append(conditions, "is_deleted = 0")
	}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.Keyword != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		q := "%" + filter.Keyword + "%"
		args = append(args, q, q)
	}

	today := filter.Today
	if today.IsZero() {
		today = model.DateOf(time.Now())
	}
	switch filter.Due {
	case DueToday:
		conditions = append(conditions, "due_date = ?")
		args = append(args, today.String())
	case DueWeek:
		conditions = append(conditions, "due_date >= ? AND due_date <= ?")
		args = append(args, today.String(), today.AddDays(7).String())
	case DueOverdue:
		conditions = append(conditions, "due_date < ?")
		args = append(args, today.String())
	case DueNone:
		conditions = append(conditions, "due_date IS NULL")
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListTodos returns one page of the user's live todos and the total
// number matching filter.
func (s *SQLiteStore) ListTodos(
	ctx context.Context,
	userID string,
	filter TodoFilter,
) ([]model.Todo, int, error) {
	where, args := todoConditions(userID, filter)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM todos"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("counting todos: %w", err)
	}

	// Determine sort expression.
	sortExpr := "created_at"
	switch filter.SortBy {
	case "due_date":
		sortExpr = "due_date"
	case "priority":
		sortExpr = "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	query := fmt.Sprintf("SELECT %s FROM todos%s ORDER BY %s %s, created_at DESC LIMIT %d OFFSET %d",
		todoColumns, where, sortExpr, direction, pageSize, offset(filter.Page, pageSize))

	var rows []todoRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("listing todos: %w", err)
	}
	todos, err := rowsToTodos(rows)
	if err != nil {
		return nil, 0, err
	}
	return todos, total, nil
}

// SoftDeleteTodo moves a todo to the trash.
func (s *SQLiteStore) SoftDeleteTodo(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE todos SET is_deleted = 1, deleted_at = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		time.Now().UTC(), time.Now().UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting todo %s: %w", id, err)
	}
	return requireRows(result, "todo", id)
}

// ClearDone moves every live done todo to the trash and returns how many
// were moved.
func (s *SQLiteStore) ClearDone(ctx context.Context, userID string) (int, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE todos SET is_deleted = 1, deleted_at = ?, updated_at = ?
		WHERE user_id = ? AND status = 'done' AND is_deleted = 0`,
		now, now, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("clearing done todos: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clearing done todos: %w", err)
	}
	return int(n), nil
}

// BatchStatus sets the status of the given todos. Unknown ids are ignored.
func (s *SQLiteStore) BatchStatus(ctx context.Context, userID string, ids []string, status string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	query, args, err := sqlx.In(`
		UPDATE todos SET
			status = ?,
			completed_at = CASE WHEN ? = 'done' AND completed_at IS NULL THEN ? ELSE completed_at END,
			updated_at = ?
		WHERE user_id = ? AND id IN (?)`,
		status, status, now, now, userID, ids,
	)
	if err != nil {
		return fmt.Errorf("building batch status query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("updating status of %d todos: %w", len(ids), err)
	}
	return nil
}

// ListTrash returns one page of deleted todos, most recently deleted first.
func (s *SQLiteStore) ListTrash(ctx context.Context, userID string, page, pageSize int) ([]model.Todo, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	var total int
	err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM todos WHERE user_id = ? AND is_deleted = 1", userID)
	if err != nil {
		return nil, 0, fmt.Errorf("counting trash: %w", err)
	}

	var rows []todoRow
	err = s.db.SelectContext(ctx, &rows,
		"SELECT "+todoColumns+" FROM todos WHERE user_id = ? AND is_deleted = 1 ORDER BY deleted_at DESC LIMIT ? OFFSET ?",
		userID, pageSize, offset(page, pageSize))
	if err != nil {
		return nil, 0, fmt.Errorf("listing trash: %w", err)
	}
	todos, err := rowsToTodos(rows)
	if err != nil {
		return nil, 0, err
	}
	return todos, total, nil
}

// RestoreTodo brings a trashed todo back.
func (s *SQLiteStore) RestoreTodo(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE todos SET is_deleted = 0, deleted_at = NULL, updated_at = ? WHERE id = ? AND user_id = ? AND is_deleted = 1",
		time.Now().UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("restoring todo %s: %w", id, err)
	}
	return requireRows(result, "todo", id)
}

// PurgeTodo permanently removes a trashed todo.
func (s *SQLiteStore) PurgeTodo(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM todos WHERE id = ? AND user_id = ? AND is_deleted = 1", id, userID)
	if err != nil {
		return fmt.Errorf("purging todo %s: %w", id, err)
	}
	return requireRows(result, "todo", id)
}

// ClearTrash permanently removes every trashed todo of the user.
func (s *SQLiteStore) ClearTrash(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM todos WHERE user_id = ? AND is_deleted = 1", userID); err != nil {
		return fmt.Errorf("clearing trash: %w", err)
	}
	return nil
}
