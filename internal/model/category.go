package model

// Category groups todos. Todos reference categories by ID.
type Category struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Color    string `json:"color" db:"color"`
	Order    int    `json:"order" db:"sort_order"`
	IsSystem bool   `json:"is_system" db:"is_system"`
}

// CategoryIndex resolves category references by ID.
type CategoryIndex map[string]Category

// IndexCategories builds a CategoryIndex from a category list.
func IndexCategories(categories []Category) CategoryIndex {
	idx := make(CategoryIndex, len(categories))
	for _, c := range categories {
		idx[c.ID] = c
	}
	return idx
}

// Lookup returns the category a todo references. ok is false when the
// reference is unset or points at a category that no longer exists; both
// mean "no category".
func (idx CategoryIndex) Lookup(id *string) (Category, bool) {
	if id == nil || *id == "" {
		return Category{}, false
	}
	c, ok := idx[*id]
	return c, ok
}
