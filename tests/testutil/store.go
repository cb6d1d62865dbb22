package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err, "creating test store")

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewUser registers a regular account with password "secret".
func NewUser(t *testing.T, s store.Store, username string) *model.User {
	t.Helper()

	user, err := s.CreateUser(context.Background(), username, "secret", username+"@example.com", model.RoleUser)
	require.NoError(t, err, "creating user %s", username)
	return user
}

// NewTodo inserts a todo for userID with the given title and returns it as
// stored.
func NewTodo(t *testing.T, s store.Store, userID string, todo model.Todo) *model.Todo {
	t.Helper()

	created, err := s.CreateTodo(context.Background(), userID, todo)
	require.NoError(t, err, "creating todo %q", todo.Title)
	return created
}
