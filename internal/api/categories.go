package api

import (
	"context"
	"net/url"

	"github.com/nhle/todosync/internal/model"
)

// CategoryInput is the body of POST and PUT /categories.
type CategoryInput struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
	Order *int   `json:"order,omitempty"`
}

// ListCategories fetches every category of the current user.
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.Get(ctx, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateCategory creates a category.
func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	var category model.Category
	if err := c.Post(ctx, "/categories", in, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// UpdateCategory changes a category's name, color or order.
func (c *Client) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*model.Category, error) {
	var category model.Category
	if err := c.Put(ctx, categoryPath(id), in, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory removes a category. Todos that referenced it end up with
// no category.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.Delete(ctx, categoryPath(id), nil)
}

func categoryPath(id string) string {
	return "/categories/" + url.PathEscape(id)
}

// StatsSummary fetches the server-computed summary.
func (c *Client) StatsSummary(ctx context.Context) (*model.Stats, error) {
	var stats model.Stats
	if err := c.Get(ctx, "/stats/summary", nil, &stats); err != nil {
		return nil, err
	}
	normalized := stats.Normalized()
	return &normalized, nil
}
