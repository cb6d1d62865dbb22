package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/todosync/internal/model"
)

const categoryColumns = "id, name, color, sort_order, is_system"

// ListCategories returns the user's categories in display order.
func (s *SQLiteStore) ListCategories(ctx context.Context, userID string) ([]model.Category, error) {
	categories := []model.Category{}
	err := s.db.SelectContext(ctx, &categories,
		"SELECT "+categoryColumns+" FROM categories WHERE user_id = ? ORDER BY sort_order ASC, name ASC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// CreateCategory inserts a category. Names are unique per user.
func (s *SQLiteStore) CreateCategory(
	ctx context.Context,
	userID string,
	category model.Category,
) (*model.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, fmt.Errorf("category name must not be empty")
	}
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, color, sort_order, is_system, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		category.ID, userID, category.Name, category.Color, category.Order,
		boolToInt(category.IsSystem), now, now,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("category %q: %w", category.Name, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return &category, nil
}

func (s *SQLiteStore) getCategory(ctx context.Context, userID, id string) (*model.Category, error) {
	var c model.Category
	err := s.db.GetContext(ctx, &c,
		"SELECT "+categoryColumns+" FROM categories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return nil, notFound(err, "category", id)
	}
	return &c, nil
}

// UpdateCategory applies the non-nil fields of changes.
func (s *SQLiteStore) UpdateCategory(
	ctx context.Context,
	userID, id string,
	changes CategoryChanges,
) (*model.Category, error) {
	c, err := s.getCategory(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if changes.Name != nil {
		if strings.TrimSpace(*changes.Name) == "" {
			return nil, fmt.Errorf("category name must not be empty")
		}
		c.Name = *changes.Name
	}
	if changes.Color != nil {
		c.Color = *changes.Color
	}
	if changes.Order != nil {
		c.Order = *changes.Order
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, color = ?, sort_order = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		c.Name, c.Color, c.Order, time.Now().UTC(), id, userID,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("category %q: %w", c.Name, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("updating category %s: %w", id, err)
	}
	return c, nil
}

// DeleteCategory removes a category and unsets it on the user's todos.
func (s *SQLiteStore) DeleteCategory(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE todos SET category_id = NULL WHERE user_id = ? AND category_id = ?", userID, id); err != nil {
		return fmt.Errorf("unsetting category %s on todos: %w", id, err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting category %s: %w", id, err)
	}
	if err := requireRows(result, "category", id); err != nil {
		return err
	}
	return tx.Commit()
}
